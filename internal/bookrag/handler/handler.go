// Package handler implements the bookrag HTTP endpoints.
package handler

import (
	"time"

	"github.com/kart-io/bookrag/internal/bookrag/biz"
	"github.com/kart-io/bookrag/internal/bookrag/store"
	"github.com/kart-io/bookrag/internal/model"
)

// Handler serves the query and status endpoints.
type Handler struct {
	registry     *biz.Registry
	cache        *biz.QueryCache
	queryTimeout time.Duration
}

// New creates a Handler. cache may be a disabled cache.
func New(registry *biz.Registry, cache *biz.QueryCache, queryTimeout time.Duration) *Handler {
	return &Handler{
		registry:     registry,
		cache:        cache,
		queryTimeout: queryTimeout,
	}
}

func toSources(results []store.SearchResult) []model.Source {
	sources := make([]model.Source, len(results))
	for i, r := range results {
		sources[i] = model.Source{Text: r.Text, Score: r.Score}
	}
	return sources
}
