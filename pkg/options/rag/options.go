// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"time"

	bizerrors "github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Backend names for the vector index.
const (
	BackendFlat   = "flat"
	BackendMilvus = "milvus"
)

// BookOptions describes one book served by the engine. Books are only
// configurable through the config file, not flags.
type BookOptions struct {
	// ID is the identifier used in query requests.
	ID string `json:"id" mapstructure:"id"`

	// Title is the human readable title, used in the system prompt.
	Title string `json:"title" mapstructure:"title"`

	// Path is the PDF file path.
	Path string `json:"path" mapstructure:"path"`
}

// Options contains RAG-specific configuration.
type Options struct {
	// ChunkSize is the size of text chunks in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Backend selects the vector index backend (flat or milvus).
	Backend string `json:"backend" mapstructure:"backend"`

	// DataDir is the directory holding persisted flat indexes.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// QueryTimeout bounds a single query end to end.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// Warmup sends a tiny generation request at startup so the first
	// real query does not pay the model load cost.
	Warmup bool `json:"warmup" mapstructure:"warmup"`

	// Books lists the documents served by this instance.
	Books []BookOptions `json:"books" mapstructure:"books"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		TopK:         3,
		Backend:      BackendFlat,
		DataDir:      "_output/bookrag",
		QueryTimeout: 60 * time.Second,
		Warmup:       true,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"rag.chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"rag.chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"rag.top-k", o.TopK, "Number of chunks retrieved per query.")
	fs.StringVar(&o.Backend, options.Join(prefixes...)+"rag.backend", o.Backend, "Vector index backend (flat, milvus).")
	fs.StringVar(&o.DataDir, options.Join(prefixes...)+"rag.data-dir", o.DataDir, "Directory holding persisted indexes.")
	fs.DurationVar(&o.QueryTimeout, options.Join(prefixes...)+"rag.query-timeout", o.QueryTimeout, "End to end timeout for a single query.")
	fs.BoolVar(&o.Warmup, options.Join(prefixes...)+"rag.warmup", o.Warmup, "Warm up the chat model at startup.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	// Chunking and retrieval parameters map onto the engine's error
	// codes so misconfiguration is reported in the same taxonomy as
	// runtime failures.
	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, bizerrors.ErrInvalidConfig.WithMessage("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, bizerrors.ErrInvalidConfig.WithMessage("rag.chunk-overlap cannot be negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, bizerrors.ErrChunkOverlap.WithMessagef("rag.chunk-overlap (%d) must be smaller than rag.chunk-size (%d)", o.ChunkOverlap, o.ChunkSize))
	}
	if o.TopK <= 0 {
		errs = append(errs, bizerrors.ErrInvalidConfig.WithMessage("rag.top-k must be positive"))
	}
	if o.Backend != BackendFlat && o.Backend != BackendMilvus {
		errs = append(errs, fmt.Errorf("rag.backend must be %q or %q", BackendFlat, BackendMilvus))
	}
	if o.DataDir == "" {
		errs = append(errs, fmt.Errorf("rag.data-dir is required"))
	}
	if o.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rag.query-timeout must be positive"))
	}
	if len(o.Books) == 0 {
		errs = append(errs, fmt.Errorf("at least one book must be configured"))
	}
	seen := make(map[string]struct{}, len(o.Books))
	for i, b := range o.Books {
		if b.ID == "" {
			errs = append(errs, fmt.Errorf("books[%d].id is required", i))
			continue
		}
		if _, ok := seen[b.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicate book id %q", b.ID))
		}
		seen[b.ID] = struct{}{}
		if b.Path == "" {
			errs = append(errs, fmt.Errorf("books[%d].path is required", i))
		}
	}
	return errs
}

// Complete fills derived fields. Book titles default to the book ID.
func (o *Options) Complete() error {
	for i := range o.Books {
		if o.Books[i].Title == "" {
			o.Books[i].Title = o.Books[i].ID
		}
	}
	return nil
}
