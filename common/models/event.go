package models

// Event represents the structured record extracted from a document
type Event struct {
	ID        string `json:"id" jsonschema_description:"The id field from the given document"`
	URL       string `json:"url" jsonschema_description:"The url field from the given document"`
	Title     string `json:"title" jsonschema_description:"The title field from the given document"`
	Year      int    `json:"year" jsonschema_description:"The year the event takes place in, 0 if not stated"`
	Month     int    `json:"month" jsonschema_description:"The month the event takes place in (1-12), 0 if not stated"`
	Day       int    `json:"day" jsonschema_description:"The day of the month the event takes place on, 0 if not stated"`
	ExtraInfo string `json:"extra_info" jsonschema_description:"Extra information that is useful to someone attending"`
}

// EventList represents a list of events
type EventList struct {
	Events []Event `json:"events"`
}

// HasDay reports whether the day of the event is known
func (e Event) HasDay() bool {
	return e.Day > 0
}
