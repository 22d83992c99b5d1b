package biz

import (
	"context"
	"strings"

	"github.com/kart-io/bookrag/internal/bookrag/store"
	bizerrors "github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/llm"
)

// Retriever finds the chunks most relevant to a question in one
// book's index.
type Retriever struct {
	embedProvider llm.EmbeddingProvider
	index         store.VectorIndex
	topK          int
}

// NewRetriever creates a retriever over the given index. topK is the
// default result count, overridable per query.
func NewRetriever(embedProvider llm.EmbeddingProvider, index store.VectorIndex, topK int) *Retriever {
	return &Retriever{
		embedProvider: embedProvider,
		index:         index,
		topK:          topK,
	}
}

// Retrieve embeds the question and returns the most similar chunks,
// ordered by descending score. topK <= 0 falls back to the default.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]store.SearchResult, error) {
	if topK <= 0 {
		topK = r.topK
	}

	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, bizerrors.ErrEmbeddingFailed.WithCause(err)
	}

	results, err := r.index.Search(ctx, embedding, topK)
	if err != nil {
		return nil, bizerrors.ErrRetrievalFailed.WithCause(err)
	}
	return results, nil
}

// JoinContext concatenates retrieved chunks into the context block
// handed to the generator.
func JoinContext(results []store.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n")
}
