// Package extractor turns a fetched document into an Event by querying a
// language model over a single-document index.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventscout/common/index"
	"eventscout/common/llm"
	"eventscout/common/models"
)

// ErrSchema wraps ErrExtraction, so both match a malformed reply.
var (
	ErrExtraction = errors.New("event extraction failed")
	ErrSchema     = fmt.Errorf("%w: reply does not match event schema", ErrExtraction)
)

// Completer is the language-model query capability.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string, schema llm.Schema) (string, error)
}

// Options represents the extraction settings. Zero values fall back to defaults.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// TopK is the number of nodes retrieved for the instruction.
	TopK int
	// ContextChars bounds the context packed into one prompt.
	ContextChars int
	Now          func() time.Time
	Logger       *slog.Logger
}

// Extractor represents the document to Event pipeline.
type Extractor struct {
	llm      Completer
	embedder index.Embedder
	schema   llm.Schema
	opts     Options
}

// New returns an Extractor using completer for answers and embedder for retrieval.
func New(completer Completer, embedder index.Embedder, opts Options) *Extractor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 4000
	}
	if opts.TopK <= 0 {
		opts.TopK = 2
	}
	if opts.ContextChars <= 0 {
		opts.ContextChars = 12000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{
		llm:      completer,
		embedder: embedder,
		schema:   EventSchema(),
		opts:     opts,
	}
}

// Extract asks the model to fill the Event schema from doc.
func (x *Extractor) Extract(ctx context.Context, doc models.Document) (models.Event, error) {
	ix, err := index.FromDocument(ctx, x.embedder, doc, index.ChunkOptions{
		Size:    x.opts.ChunkSize,
		Overlap: x.opts.ChunkOverlap,
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: index %s: %w", ErrExtraction, doc.ID, err)
	}
	hits, err := ix.Retrieve(ctx, Instruction, x.opts.TopK)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: retrieve %s: %w", ErrExtraction, doc.ID, err)
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Content()
	}
	x.opts.Logger.Debug("extracting event", "id", doc.ID, "nodes", ix.Len(), "retrieved", len(hits))

	reply, err := x.treeSummarize(ctx, Instruction, texts)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: %s: %w", ErrExtraction, doc.ID, err)
	}
	ev, err := Parse(reply, doc, x.opts.Now())
	if err != nil {
		x.opts.Logger.Warn("model reply rejected", "id", doc.ID, "err", err)
		return models.Event{}, err
	}
	return ev, nil
}

// treeSummarize answers query over texts. Texts are packed into prompts of at most
// ContextChars; while more than one pack remains each pack is answered as plain text
// and the answers are packed again. The last pack is answered with the Event schema.
func (x *Extractor) treeSummarize(ctx context.Context, query string, texts []string) (string, error) {
	packs := pack(texts, x.opts.ContextChars)
	for len(packs) > 1 {
		answers := make([]string, 0, len(packs))
		for _, p := range packs {
			prompt, err := renderSummarize(p, query)
			if err != nil {
				return "", err
			}
			ans, err := x.llm.Complete(ctx, prompt)
			if err != nil {
				return "", err
			}
			answers = append(answers, ans)
		}
		next := pack(answers, x.opts.ContextChars)
		if len(next) >= len(packs) {
			// answers no longer shrink, finish in one prompt
			next = []string{strings.Join(answers, "\n\n")}
		}
		packs = next
	}
	if len(packs) == 0 {
		return "", index.ErrEmptyDocument
	}
	prompt, err := renderSummarize(packs[0], query)
	if err != nil {
		return "", err
	}
	return x.llm.CompleteJSON(ctx, prompt, x.schema)
}

// pack greedily joins texts into groups of at most budget bytes.
// A text larger than budget forms its own group.
func pack(texts []string, budget int) []string {
	const sep = "\n\n"
	var (
		out []string
		cur strings.Builder
	)
	for _, t := range texts {
		if cur.Len() > 0 && cur.Len()+len(sep)+len(t) > budget {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(t)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
