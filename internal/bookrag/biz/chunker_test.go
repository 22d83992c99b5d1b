package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortText(t *testing.T) {
	c := NewChunker(1000, 200)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("too short to keep"))

	text := strings.Repeat("a", 60)
	chunks := c.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitBreaksAtSentenceBoundary(t *testing.T) {
	c := NewChunker(100, 20)

	// A period at position 79, inside the second half of the first
	// window, should end the first chunk.
	first := strings.Repeat("a", 79) + "."
	text := first + " " + strings.Repeat("b", 120)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	assert.Equal(t, first, chunks[0])
}

func TestSplitIgnoresEarlyBoundary(t *testing.T) {
	c := NewChunker(100, 20)

	// The only period sits in the first half of the window, so the
	// chunk is cut at the full window size instead.
	text := strings.Repeat("a", 30) + "." + strings.Repeat("b", 200)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0]), 100)
}

func TestSplitOverlap(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("x", 250)
	chunks := c.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	// Consecutive chunks share the trailing overlap of the previous one.
	tail := chunks[0][len(chunks[0])-20:]
	assert.True(t, strings.HasPrefix(chunks[1], tail))
}

func TestSplitDropsTinyFragments(t *testing.T) {
	c := NewChunker(100, 20)

	// The final window is whitespace-padded residue under the length
	// floor and must not appear in the output.
	text := strings.Repeat("y", 100) + "   zz   "
	chunks := c.Split(text)
	for _, chunk := range chunks {
		assert.Greater(t, len([]rune(chunk)), minChunkChars)
	}
}

func TestSplitTrimsWhitespace(t *testing.T) {
	c := NewChunker(1000, 200)
	text := "\n\n  " + strings.Repeat("a", 80) + "  \n"
	chunks := c.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, strings.Repeat("a", 80), chunks[0])
}

func TestSplitUnicode(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("文", 150)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0]), 100)
}
