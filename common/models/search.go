package models

import "encoding/json"

// SearchQuery represents a search request sent to the external search service
type SearchQuery struct {
	Query          string `json:"query"`
	NumResults     int    `json:"numResults"`
	StartCrawlDate string `json:"startCrawlDate,omitempty"`
	UseAutoprompt  bool   `json:"useAutoprompt"`
}

// SearchResult is a single search hit passed through to the frontend untouched
type SearchResult = json.RawMessage

// SearchResults is the ordered result list returned by the search service
type SearchResults []SearchResult

// NewSearchQuery creates a new search query with default values
func NewSearchQuery(query string) SearchQuery {
	return SearchQuery{
		Query:         query,
		NumResults:    10,
		UseAutoprompt: true,
	}
}
