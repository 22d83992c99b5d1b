// Package model defines the request and response schemas for the
// bookrag HTTP API.
package model

import (
	"time"

	"github.com/kart-io/bookrag/pkg/id"
)

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	// Question is the user question about the book.
	Question string `json:"question" binding:"required,min=1,max=2000"`

	// Book is the book identifier to query.
	Book string `json:"book" binding:"required"`

	// Stream requests an SSE token stream instead of a single response.
	Stream bool `json:"stream"`

	// TopK overrides the configured number of retrieved chunks.
	TopK int `json:"top_k" binding:"omitempty,gte=1,lte=10"`

	// Temperature overrides the configured sampling temperature.
	Temperature float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

// Source is one retrieved chunk backing an answer.
type Source struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// QueryResponse is the non-streaming answer.
type QueryResponse struct {
	ID      string   `json:"id"`
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Model   string   `json:"model"`
	Created int64    `json:"created"`
	Cached  bool     `json:"cached,omitempty"`
}

// NewQueryResponse creates a QueryResponse with a fresh ID and timestamp.
func NewQueryResponse(answer string, sources []Source, model string) *QueryResponse {
	return &QueryResponse{
		ID:      id.NewResponseID(),
		Answer:  answer,
		Sources: sources,
		Model:   model,
		Created: time.Now().Unix(),
	}
}

// StreamChunk is one SSE event of a streamed answer.
type StreamChunk struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
}

// BookStatus reports one book's readiness.
type BookStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	IndexSize int    `json:"index_size"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string       `json:"status"`
	Model  string       `json:"model"`
	Books  []BookStatus `json:"books"`
}

// BookInfo describes one configured book for GET /v1/books.
type BookInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	IndexSize int    `json:"index_size"`
}
