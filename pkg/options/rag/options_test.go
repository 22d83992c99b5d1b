package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bizerrors "github.com/kart-io/bookrag/pkg/errors"
)

func validOptions() *Options {
	o := NewOptions()
	o.Books = []BookOptions{
		{ID: "golang-book", Title: "The Go Programming Language", Path: "testdata/go.pdf"},
	}
	return o
}

func TestValidate(t *testing.T) {
	assert.Empty(t, validOptions().Validate())
}

func TestValidateOverlap(t *testing.T) {
	o := validOptions()
	o.ChunkSize = 100
	o.ChunkOverlap = 100

	errs := o.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "chunk-overlap")
	assert.ErrorIs(t, errs[0], bizerrors.ErrChunkOverlap)
}

func TestValidateChunkParamCodes(t *testing.T) {
	o := validOptions()
	o.ChunkSize = 0
	errs := o.Validate()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], bizerrors.ErrInvalidConfig)

	o = validOptions()
	o.TopK = 0
	errs = o.Validate()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], bizerrors.ErrInvalidConfig)
}

func TestValidateBooks(t *testing.T) {
	o := validOptions()
	o.Books = nil
	assert.NotEmpty(t, o.Validate())

	o = validOptions()
	o.Books = append(o.Books, o.Books[0])
	errs := o.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "duplicate book id")

	o = validOptions()
	o.Books[0].Path = ""
	assert.NotEmpty(t, o.Validate())
}

func TestValidateBackend(t *testing.T) {
	o := validOptions()
	o.Backend = "faiss"
	assert.NotEmpty(t, o.Validate())
}

func TestCompleteDefaultsTitle(t *testing.T) {
	o := validOptions()
	o.Books[0].Title = ""
	require.NoError(t, o.Complete())
	assert.Equal(t, "golang-book", o.Books[0].Title)
}
