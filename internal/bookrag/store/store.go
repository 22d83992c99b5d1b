// Package store provides vector index backends for book chunks.
package store

import (
	"context"
)

// SearchResult is one retrieval hit.
type SearchResult struct {
	// Text is the chunk text.
	Text string

	// Score is the cosine similarity against the query, in [-1, 1].
	Score float32

	// Index is the chunk position in the source document.
	Index int
}

// VectorIndex answers similarity searches over one document's chunks.
type VectorIndex interface {
	// Search returns the topK most similar chunks for the query
	// embedding, ordered by descending score.
	Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error)

	// Size returns the number of indexed chunks.
	Size() int
}

// EmbedFunc embeds a batch of texts, one vector per text in order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Provider builds or loads the vector index for a document, keyed by
// its content fingerprint. A cached index is reused when present and
// valid, otherwise the chunks are embedded and a fresh index is built
// and persisted.
type Provider interface {
	LoadOrBuild(ctx context.Context, fingerprint string, chunks []string, embed EmbedFunc) (VectorIndex, error)
}
