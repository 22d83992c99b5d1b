package biz

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/kart-io/logger"

	"github.com/kart-io/bookrag/internal/bookrag/store"
	"github.com/kart-io/bookrag/internal/pkg/docutil"
	bizerrors "github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/llm"
	ragopts "github.com/kart-io/bookrag/pkg/options/rag"
	"github.com/kart-io/bookrag/pkg/pool"
)

// State is the lifecycle phase of an Engine.
type State int32

const (
	// StateUninitialized means Initialize has not run yet.
	StateUninitialized State = iota
	// StateIngesting means the document is being chunked and indexed.
	StateIngesting
	// StateReady means the engine accepts queries.
	StateReady
)

// String returns the status label used by the health endpoint.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateIngesting:
		return "initializing"
	default:
		return "uninitialized"
	}
}

// Engine answers questions about one book. It is safe for concurrent
// queries once Initialize has completed.
type Engine struct {
	book          ragopts.BookOptions
	chunker       *Chunker
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	storeProvider store.Provider
	workers       *pool.Pool

	// extract pulls plain text out of the document. Swapped in tests.
	extract func(path string) (string, error)

	state     atomic.Int32
	index     store.VectorIndex
	retriever *Retriever
	generator *Generator
	topK      int
}

// NewEngine wires an engine for one book. Initialize must be called
// before Query.
func NewEngine(
	book ragopts.BookOptions,
	opts *ragopts.Options,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	storeProvider store.Provider,
	workers *pool.Pool,
) *Engine {
	return &Engine{
		book:          book,
		chunker:       NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		storeProvider: storeProvider,
		workers:       workers,
		extract:       docutil.ExtractText,
		topK:          opts.TopK,
	}
}

// Book returns the book this engine serves.
func (e *Engine) Book() ragopts.BookOptions {
	return e.book
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// IndexSize returns the number of indexed chunks, or 0 before the
// engine is ready.
func (e *Engine) IndexSize() int {
	if e.State() != StateReady || e.index == nil {
		return 0
	}
	return e.index.Size()
}

// Initialize extracts the book's text, chunks it, and builds or loads
// the vector index. It must complete before the engine serves queries
// and must not be called concurrently.
func (e *Engine) Initialize(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateUninitialized), int32(StateIngesting)) {
		return bizerrors.ErrAlreadyInitializing
	}

	if err := e.ingest(ctx); err != nil {
		e.state.Store(int32(StateUninitialized))
		return err
	}

	e.state.Store(int32(StateReady))
	logger.Infow("Engine ready", "book", e.book.ID, "title", e.book.Title, "vectors", e.index.Size())
	return nil
}

func (e *Engine) ingest(ctx context.Context) error {
	if _, err := os.Stat(e.book.Path); err != nil {
		return bizerrors.ErrDocumentNotFound.WithCause(err)
	}

	fingerprint, err := Fingerprint(e.book.Path)
	if err != nil {
		return bizerrors.ErrIngestionFailed.WithCause(err)
	}

	text, err := e.extract(e.book.Path)
	if err != nil {
		return bizerrors.ErrIngestionFailed.WithCause(err)
	}

	chunks := e.chunker.Split(text)
	if len(chunks) == 0 {
		return bizerrors.ErrIngestionFailed.WithMessage("document produced no usable chunks")
	}
	logger.Infow("Document chunked", "book", e.book.ID, "chunks", len(chunks))

	index, err := e.storeProvider.LoadOrBuild(ctx, fingerprint, chunks, BatchEmbed(e.embedProvider))
	if err != nil {
		return bizerrors.ErrIngestionFailed.WithCause(err)
	}

	e.index = index
	e.retriever = NewRetriever(e.embedProvider, index, e.topK)
	e.generator = NewGenerator(e.chatProvider, e.book.Title)
	return nil
}

// Query retrieves context for the question and generates a complete
// answer. topK <= 0 uses the configured default.
func (e *Engine) Query(ctx context.Context, question string, topK int) (string, []store.SearchResult, error) {
	results, err := e.retrieve(ctx, question, topK)
	if err != nil {
		return "", nil, err
	}

	answer, err := e.generator.Generate(ctx, question, JoinContext(results))
	if err != nil {
		return "", nil, bizerrors.FromError(err)
	}
	return answer, results, nil
}

// QueryStream retrieves context for the question and returns a token
// stream of the answer. The caller must close the stream.
func (e *Engine) QueryStream(ctx context.Context, question string, topK int) (llm.TokenStream, []store.SearchResult, error) {
	results, err := e.retrieve(ctx, question, topK)
	if err != nil {
		return nil, nil, err
	}

	inner, err := e.generator.GenerateStream(ctx, question, JoinContext(results))
	if err != nil {
		return nil, nil, bizerrors.FromError(err)
	}
	return NewAnswerStream(ctx, e.workers, inner), results, nil
}

func (e *Engine) retrieve(ctx context.Context, question string, topK int) ([]store.SearchResult, error) {
	if e.State() != StateReady {
		return nil, bizerrors.ErrEngineNotReady
	}

	results, err := e.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, bizerrors.FromError(err)
	}
	return results, nil
}
