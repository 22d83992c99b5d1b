package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		name     string
		service  int
		category int
		seq      int
		want     int
	}{
		{"common internal", ServiceCommon, CategoryInternal, 1, 7001},
		{"rag request", ServiceRAG, CategoryRequest, 2, 2001002},
		{"rag timeout", ServiceRAG, CategoryTimeout, 1, 2011001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := MakeCode(tt.service, tt.category, tt.seq)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.service, ServiceOf(code))
			assert.Equal(t, tt.category, CategoryOf(code))
		})
	}
}

func TestErrnoIs(t *testing.T) {
	err := ErrUnknownBook.WithMessagef("unknown book %q", "nope")
	assert.True(t, stderrors.Is(err, ErrUnknownBook))
	assert.False(t, stderrors.Is(err, ErrEngineNotReady))
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrBackendUnavailable.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrBackendUnavailable))
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.Contains(t, err.Error(), "connection refused")

	// The shared sentinel must not be mutated.
	assert.Nil(t, stderrors.Unwrap(ErrBackendUnavailable))
}

func TestFromError(t *testing.T) {
	// Errno somewhere in the chain is recovered.
	wrapped := fmt.Errorf("query failed: %w", ErrEngineNotReady)
	errno := FromError(wrapped)
	require.NotNil(t, errno)
	assert.Equal(t, ErrEngineNotReady.Code, errno.Code)
	assert.Equal(t, 503, errno.HTTPStatus())

	// Plain errors fall back to ErrInternal.
	errno = FromError(fmt.Errorf("boom"))
	require.NotNil(t, errno)
	assert.Equal(t, ErrInternal.Code, errno.Code)

	assert.Nil(t, FromError(nil))
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(ErrUnknownBook.Code)
	require.True(t, ok)
	assert.Equal(t, ErrUnknownBook, e)

	_, ok = Lookup(9999999)
	assert.False(t, ok)
}
