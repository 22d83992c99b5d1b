package biz

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kart-io/bookrag/internal/bookrag/store"
	"github.com/kart-io/bookrag/pkg/llm"
)

const (
	// embedBatchSize is how many chunks go to the backend per request.
	embedBatchSize = 32
	// embedConcurrency caps in-flight embedding requests during
	// ingestion.
	embedConcurrency = 4
)

// BatchEmbed returns an EmbedFunc that splits the input into batches
// and embeds them concurrently. Result order matches input order
// regardless of batch completion order.
func BatchEmbed(provider llm.EmbeddingProvider) store.EmbedFunc {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(embedConcurrency)

		for start := 0; start < len(texts); start += embedBatchSize {
			end := min(start+embedBatchSize, len(texts))
			batch := texts[start:end]

			g.Go(func() error {
				embeddings, err := provider.Embed(ctx, batch)
				if err != nil {
					return fmt.Errorf("embed batch at %d: %w", start, err)
				}
				if len(embeddings) != len(batch) {
					return fmt.Errorf("embed batch at %d: got %d embeddings for %d texts", start, len(embeddings), len(batch))
				}
				copy(out[start:end], embeddings)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}
}
