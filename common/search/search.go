package search

import (
	"context"
	"fmt"
	"time"

	"eventscout/common/models"
)

const (
	DefaultQuery      = "Check out this exciting recent event happening in Philadelphia"
	DefaultNumResults = 5
)

// Searcher is the search capability of the search provider.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (models.SearchResults, error)
}

// Options tune the recent-events query. Zero values fall back to the defaults.
type Options struct {
	Query      string
	NumResults int
	Autoprompt bool
	Now        func() time.Time
}

// Service represents the recent-events search.
type Service struct {
	searcher Searcher
	opts     Options
}

// New returns a Service querying searcher with opts.
func New(searcher Searcher, opts Options) *Service {
	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if opts.NumResults <= 0 {
		opts.NumResults = DefaultNumResults
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{searcher: searcher, opts: opts}
}

// Recent searches for events crawled since the first day of the previous month.
// The results are returned exactly as the provider sent them.
func (s *Service) Recent(ctx context.Context) (models.SearchResults, error) {
	q := s.Query()
	results, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search recent events: %w", err)
	}
	return results, nil
}

// Query builds the query Recent sends.
func (s *Service) Query() models.SearchQuery {
	q := models.NewSearchQuery(s.opts.Query)
	q.NumResults = s.opts.NumResults
	q.UseAutoprompt = s.opts.Autoprompt
	q.StartCrawlDate = WindowStart(s.opts.Now()).Format(time.DateOnly)
	return q
}

// WindowStart returns the first day of the calendar month before now.
func WindowStart(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m-1, 1, 0, 0, 0, 0, now.Location())
}
