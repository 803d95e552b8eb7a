// Package fetcher retrieves one document by identifier from the content service.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"eventscout/common/metaphor"
	"eventscout/common/models"
)

// Errors returned by Fetch, matched with errors.Is.
var (
	ErrMissingID = errors.New("document id is required")
	ErrNotFound  = errors.New("document not found")
	ErrAmbiguous = errors.New("ambiguous document result")
	ErrFetch     = errors.New("document fetch failed")
)

// ContentsClient is the content-retrieval capability of the search provider.
type ContentsClient interface {
	Contents(ctx context.Context, ids []string) ([]metaphor.Content, error)
}

// Fetcher represents the lookup of one document by id.
type Fetcher struct {
	contents ContentsClient
}

// New returns a Fetcher reading from contents.
func New(contents ContentsClient) *Fetcher {
	return &Fetcher{contents: contents}
}

// Fetch retrieves the document with the given id. Exactly one result is expected
// back from the content service.
func (f *Fetcher) Fetch(ctx context.Context, id string) (models.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Document{}, ErrMissingID
	}

	contents, err := f.contents.Contents(ctx, []string{id})
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %s: %w", ErrFetch, id, err)
	}
	switch len(contents) {
	case 1:
	case 0:
		return models.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		return models.Document{}, fmt.Errorf("%w: %s returned %d documents", ErrAmbiguous, id, len(contents))
	}

	c := contents[0]
	return models.Document{
		ID:       c.ID,
		URL:      c.URL,
		Title:    norm.NFKC.String(strings.TrimSpace(c.Title)),
		FullText: norm.NFKC.String(c.Extract),
	}, nil
}
