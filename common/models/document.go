package models

// Document is the text and metadata of one page fetched from the content service
type Document struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	FullText string `json:"full_text"`
}

// Metadata returns the fields that describe the document, in display order
func (d Document) Metadata() [][2]string {
	return [][2]string{
		{"id", d.ID},
		{"url", d.URL},
		{"title", d.Title},
	}
}
