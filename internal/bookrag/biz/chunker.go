// Package biz implements the retrieval-augmented answering pipeline:
// document chunking, index management, retrieval, and generation.
package biz

import (
	"strings"
)

// minChunkChars filters out fragments too short to carry meaning,
// such as stray page numbers or chapter headings.
const minChunkChars = 50

// Chunker splits extracted document text into overlapping chunks
// sized for embedding.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. chunkSize and overlap are measured in
// Unicode characters and overlap must be smaller than chunkSize.
func NewChunker(chunkSize, overlap int) *Chunker {
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split cuts text into chunks of up to chunkSize characters with the
// configured overlap between consecutive chunks. Each window prefers
// to end at the last sentence or line boundary in its second half so
// chunks do not cut sentences mid-way. Whitespace-trimmed fragments
// of minChunkChars characters or fewer are dropped.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	var chunks []string

	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end < len(runes) {
			if at := breakPoint(runes[start:end]); at > c.chunkSize/2 {
				end = start + at + 1
			}
		} else {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunk)) > minChunkChars {
			chunks = append(chunks, chunk)
		}

		if next := end - c.overlap; next > start {
			start = next
		} else {
			start = end
		}
	}

	return chunks
}

// breakPoint returns the index of the last sentence terminator or
// newline in window, or -1 when there is none.
func breakPoint(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
