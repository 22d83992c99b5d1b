package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/kart-io/logger"

	"github.com/kart-io/bookrag/internal/pkg/docutil"
)

// FlatIndex is an exact brute-force index over normalized embeddings.
// Inner product over L2-normalized vectors equals cosine similarity.
type FlatIndex struct {
	chunks     []string
	embeddings [][]float32
	dim        int
}

var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex builds an index from chunks and their embeddings. The
// embeddings are normalized in place. Row count must match chunk count
// and all rows must share one dimension.
func NewFlatIndex(chunks []string, embeddings [][]float32) (*FlatIndex, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, fmt.Errorf("zero-dimensional embeddings")
	}
	for i, row := range embeddings {
		if len(row) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(row), dim)
		}
		normalize(row)
	}

	return &FlatIndex{chunks: chunks, embeddings: embeddings, dim: dim}, nil
}

// normalize scales v to unit length. Zero vectors are left untouched.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// Size returns the number of indexed chunks.
func (ix *FlatIndex) Size() int {
	return len(ix.chunks)
}

// Dim returns the embedding dimension.
func (ix *FlatIndex) Dim() int {
	return ix.dim
}

// Search scores every chunk against the query and returns the topK
// best, ordered by descending score. topK larger than the index is
// clamped.
func (ix *FlatIndex) Search(_ context.Context, query []float32, topK int) ([]SearchResult, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	if topK > len(ix.chunks) {
		topK = len(ix.chunks)
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalize(q)

	results := make([]SearchResult, len(ix.chunks))
	for i, row := range ix.embeddings {
		var dot float32
		for j, x := range row {
			dot += x * q[j]
		}
		results[i] = SearchResult{Text: ix.chunks[i], Score: dot, Index: i}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Index < results[b].Index
	})
	return results[:topK], nil
}

// flatIndexFile is the on-disk representation of a FlatIndex.
type flatIndexFile struct {
	Chunks     []string
	Embeddings [][]float32
}

// FlatProvider persists flat indexes as gob files under DataDir, one
// per document fingerprint.
type FlatProvider struct {
	dataDir string
}

var _ Provider = (*FlatProvider)(nil)

// NewFlatProvider creates a FlatProvider rooted at dataDir.
func NewFlatProvider(dataDir string) *FlatProvider {
	return &FlatProvider{dataDir: dataDir}
}

func (p *FlatProvider) cachePath(fingerprint string) string {
	return filepath.Join(p.dataDir, "index_"+fingerprint+".gob")
}

// LoadOrBuild loads the cached index for the fingerprint, rebuilding
// from scratch when the cache is missing, unreadable, or does not
// match the current chunks.
func (p *FlatProvider) LoadOrBuild(ctx context.Context, fingerprint string, chunks []string, embed EmbedFunc) (VectorIndex, error) {
	path := p.cachePath(fingerprint)

	if ix, err := loadFlatIndex(path, len(chunks)); err == nil {
		logger.Infow("Loaded cached index", "path", path, "vectors", ix.Size())
		return ix, nil
	} else if !os.IsNotExist(err) {
		logger.Warnw("Cached index unusable, rebuilding", "path", path, "error", err)
	}

	logger.Infow("Building index", "chunks", len(chunks))
	embeddings, err := embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	ix, err := NewFlatIndex(chunks, embeddings)
	if err != nil {
		return nil, err
	}

	if err := saveFlatIndex(path, ix); err != nil {
		// A failed cache write only costs a rebuild next startup.
		logger.Warnw("Failed to persist index", "path", path, "error", err)
	} else {
		logger.Infow("Index cached to disk", "path", path, "vectors", ix.Size())
	}
	return ix, nil
}

func loadFlatIndex(path string, wantChunks int) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var file flatIndexFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if wantChunks > 0 && len(file.Chunks) != wantChunks {
		return nil, fmt.Errorf("cached index has %d chunks, document has %d", len(file.Chunks), wantChunks)
	}
	return NewFlatIndex(file.Chunks, file.Embeddings)
}

func saveFlatIndex(path string, ix *FlatIndex) error {
	if err := docutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(flatIndexFile{
		Chunks:     ix.chunks,
		Embeddings: ix.embeddings,
	}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
