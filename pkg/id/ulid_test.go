package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.True(t, IsValid(a))
}

func TestNewMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.True(t, next > prev, "ids must be lexicographically increasing")
		prev = next
	}
}

func TestNewResponseID(t *testing.T) {
	rid := NewResponseID()
	assert.True(t, strings.HasPrefix(rid, "rag-"))
	assert.Len(t, rid, 30)
	assert.Equal(t, strings.ToLower(rid), rid)
}
