// Package index holds an in-memory vector index over the chunks of a single document.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"eventscout/common/models"
)

// DocumentPrefix marks the start of the document body inside a node.
const DocumentPrefix = "[Document] "

// ErrEmptyDocument is returned when a document has nothing to index.
var ErrEmptyDocument = errors.New("document has no text")

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Node is one chunk of a document together with the document's metadata.
type Node struct {
	Text     string
	Metadata [][2]string
}

// Content renders the node the way it is shown to the language model:
// metadata lines, a blank line, then the chunk text.
func (n Node) Content() string {
	var b strings.Builder
	for _, kv := range n.Metadata {
		b.WriteString(kv[0])
		b.WriteString(": ")
		b.WriteString(kv[1])
		b.WriteByte('\n')
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(n.Text)
	return b.String()
}

// ScoredNode is a retrieval hit.
type ScoredNode struct {
	Node
	Score float64
}

// ChunkOptions represents how a document is split into nodes.
type ChunkOptions struct {
	Size    int
	Overlap int
}

// Index represents the embedded nodes of a single document.
type Index struct {
	embedder Embedder
	nodes    []Node
	vectors  [][]float64
}

// FromDocument splits doc into nodes and embeds them.
func FromDocument(ctx context.Context, embedder Embedder, doc models.Document, opts ChunkOptions) (*Index, error) {
	if strings.TrimSpace(doc.FullText) == "" {
		return nil, ErrEmptyDocument
	}
	meta := doc.Metadata()
	chunks := Split(DocumentPrefix+doc.FullText, opts.Size, opts.Overlap)
	nodes := make([]Node, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		nodes[i] = Node{Text: c, Metadata: meta}
		texts[i] = nodes[i].Content()
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed nodes: %w", err)
	}
	if len(vectors) != len(nodes) {
		return nil, fmt.Errorf("embed nodes: got %d vectors for %d nodes", len(vectors), len(nodes))
	}
	return &Index{embedder: embedder, nodes: nodes, vectors: vectors}, nil
}

// Len returns the number of nodes.
func (ix *Index) Len() int { return len(ix.nodes) }

// Retrieve returns the k nodes most similar to query, best first.
// Ties keep document order.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]ScoredNode, error) {
	if k <= 0 || k > len(ix.nodes) {
		k = len(ix.nodes)
	}
	qv, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(qv))
	}

	scored := make([]ScoredNode, len(ix.nodes))
	for i, n := range ix.nodes {
		scored[i] = ScoredNode{Node: n, Score: Cosine(qv[0], ix.vectors[i])}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored[:k], nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
