package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/bookrag/internal/bookrag/store"
	"github.com/kart-io/bookrag/internal/model"
	bizerrors "github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/llm"
	ragopts "github.com/kart-io/bookrag/pkg/options/rag"
	"github.com/kart-io/bookrag/pkg/pool"
)

// modelEnsurer is implemented by providers that can pull missing
// models on the backend.
type modelEnsurer interface {
	EnsureModel(ctx context.Context, model string) error
}

// warmuper is implemented by providers that can preload the chat
// model before the first real query.
type warmuper interface {
	Warmup(ctx context.Context) error
}

// RegistryConfig assembles everything the registry needs to bring the
// books online.
type RegistryConfig struct {
	Options       *ragopts.Options
	EmbedProvider llm.EmbeddingProvider
	ChatProvider  llm.ChatProvider
	StoreProvider store.Provider
	Workers       *pool.Pool

	// ChatModel is reported by the health endpoint.
	ChatModel string
	// EnsureModels are pulled on the backend when missing.
	EnsureModels []string
}

// Registry owns one engine per configured book. The engine map is
// built once during Init and read-only afterwards, so lookups need no
// locking.
type Registry struct {
	cfg     *RegistryConfig
	engines map[string]*Engine
	order   []string
}

// NewRegistry creates the registry and its engines. Engines are not
// initialized yet; call Init.
func NewRegistry(cfg *RegistryConfig) *Registry {
	engines := make(map[string]*Engine, len(cfg.Options.Books))
	order := make([]string, 0, len(cfg.Options.Books))

	for _, book := range cfg.Options.Books {
		id := strings.ToLower(book.ID)
		engines[id] = NewEngine(book, cfg.Options, cfg.EmbedProvider, cfg.ChatProvider, cfg.StoreProvider, cfg.Workers)
		order = append(order, id)
	}

	return &Registry{cfg: cfg, engines: engines, order: order}
}

// Init checks the backend, ensures required models are present,
// optionally warms the chat model up, and ingests every book. Books
// are ingested one at a time; each ingestion embeds its chunks
// concurrently.
func (r *Registry) Init(ctx context.Context) error {
	if pinger, ok := r.cfg.ChatProvider.(llm.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return bizerrors.ErrBackendUnavailable.WithCause(err)
		}
	}

	if ensurer, ok := r.cfg.ChatProvider.(modelEnsurer); ok {
		for _, m := range r.cfg.EnsureModels {
			if err := ensurer.EnsureModel(ctx, m); err != nil {
				return bizerrors.ErrBackendUnavailable.WithCause(err)
			}
		}
	}

	if r.cfg.Options.Warmup {
		if w, ok := r.cfg.ChatProvider.(warmuper); ok {
			// Warmup runs on a pooled worker off the startup path and
			// is skipped when startup was cancelled. A failed warmup
			// only makes the first query slower.
			err := r.cfg.Workers.SubmitWithContext(ctx, func() {
				if err := w.Warmup(ctx); err != nil {
					logger.Warnw("Model warmup failed", "error", err)
				}
			})
			if err != nil {
				logger.Warnw("Model warmup not scheduled", "error", err)
			}
		}
	}

	// Cached indexes are keyed by document fingerprint only, so a
	// changed embedding model silently reuses stale vectors. Log the
	// model here to make that diagnosable.
	logger.Infow("Embedding with", "provider", r.cfg.EmbedProvider.Name(), "models", r.cfg.EnsureModels)

	for _, id := range r.order {
		eng := r.engines[id]
		logger.Infow("Initializing book", "book", id, "title", eng.Book().Title, "path", eng.Book().Path)
		if err := eng.Initialize(ctx); err != nil {
			return err
		}
	}

	logger.Infow("All books loaded", "count", len(r.order))
	return nil
}

// Get returns the engine for a book ID, case-insensitively.
func (r *Registry) Get(bookID string) (*Engine, bool) {
	eng, ok := r.engines[strings.ToLower(bookID)]
	return eng, ok
}

// BookIDs returns the configured book IDs in configuration order.
func (r *Registry) BookIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Books reports per-book status in configuration order.
func (r *Registry) Books() []model.BookStatus {
	books := make([]model.BookStatus, 0, len(r.order))
	for _, id := range r.order {
		eng := r.engines[id]
		books = append(books, model.BookStatus{
			Name:      eng.Book().Title,
			Status:    eng.State().String(),
			IndexSize: eng.IndexSize(),
		})
	}
	return books
}

// BookInfos reports per-book detail in configuration order.
func (r *Registry) BookInfos() []model.BookInfo {
	infos := make([]model.BookInfo, 0, len(r.order))
	for _, id := range r.order {
		eng := r.engines[id]
		infos = append(infos, model.BookInfo{
			ID:        id,
			Title:     eng.Book().Title,
			Status:    eng.State().String(),
			IndexSize: eng.IndexSize(),
		})
	}
	return infos
}

// AllReady reports whether every engine is serving.
func (r *Registry) AllReady() bool {
	if len(r.engines) == 0 {
		return false
	}
	for _, eng := range r.engines {
		if eng.State() != StateReady {
			return false
		}
	}
	return true
}

// ChatModel returns the chat model name for the health endpoint.
func (r *Registry) ChatModel() string {
	return r.cfg.ChatModel
}
