package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchEmbedPreservesOrder(t *testing.T) {
	provider := &fakeProvider{}
	embed := BatchEmbed(provider)

	// More texts than one batch, with a ragged tail.
	texts := make([]string, embedBatchSize*2+5)
	for i := range texts {
		texts[i] = fmt.Sprintf("text number %d with some padding", i)
	}

	got, err := embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))

	want, err := provider.Embed(context.Background(), texts)
	require.NoError(t, err)
	for i := range texts {
		assert.Equal(t, want[i], got[i], "row %d", i)
	}
}

func TestBatchEmbedEmptyInput(t *testing.T) {
	embed := BatchEmbed(&fakeProvider{})
	got, err := embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// failingEmbedder fails every call.
type failingEmbedder struct {
	fakeProvider
}

func (f *failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("backend refused")
}

func TestBatchEmbedPropagatesFailure(t *testing.T) {
	embed := BatchEmbed(&failingEmbedder{})
	_, err := embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "backend refused")
}
