package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/bookrag/pkg/options/milvus"
)

const (
	milvusTextMaxLen = 65535
	milvusNlist      = 128
	milvusNprobe     = "16"
)

// MilvusProvider keeps one collection per document fingerprint in a
// Milvus instance. The collection doubles as the persistent cache: a
// collection whose row count matches the chunk count is reused without
// re-embedding.
type MilvusProvider struct {
	client *milvusclient.Client
}

var _ Provider = (*MilvusProvider)(nil)

// NewMilvusProvider connects to Milvus using the given options.
func NewMilvusProvider(ctx context.Context, opts *milvusopts.Options) (*MilvusProvider, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	connCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(connCtx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus: %w", err)
	}
	return &MilvusProvider{client: c}, nil
}

// Close releases the Milvus connection.
func (p *MilvusProvider) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}

// collectionName maps a fingerprint to a valid Milvus collection name.
func collectionName(fingerprint string) string {
	return "book_" + fingerprint
}

// LoadOrBuild reuses the fingerprint's collection when its row count
// matches the chunks, otherwise drops it, embeds the chunks, and
// recreates it.
func (p *MilvusProvider) LoadOrBuild(ctx context.Context, fingerprint string, chunks []string, embed EmbedFunc) (VectorIndex, error) {
	name := collectionName(fingerprint)

	exists, err := p.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if exists {
		count, err := p.rowCount(ctx, name)
		if err != nil {
			return nil, err
		}
		if count == int64(len(chunks)) {
			if err := p.load(ctx, name); err != nil {
				return nil, err
			}
			logger.Infow("Reusing milvus collection", "collection", name, "vectors", count)
			return &milvusIndex{client: p.client, collection: name, size: int(count)}, nil
		}
		logger.Warnw("Stale milvus collection, rebuilding", "collection", name, "rows", count, "chunks", len(chunks))
		if err := p.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
			return nil, fmt.Errorf("drop stale collection: %w", err)
		}
	}

	logger.Infow("Building milvus collection", "collection", name, "chunks", len(chunks))
	embeddings, err := embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embeddings to index")
	}
	dim := len(embeddings[0])

	if err := p.createCollection(ctx, name, dim); err != nil {
		return nil, err
	}

	indexes := make([]int64, len(chunks))
	for i := range chunks {
		indexes[i] = int64(i)
	}
	_, err = p.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(name,
		column.NewColumnFloatVector("embedding", dim, embeddings),
		column.NewColumnVarChar("text", chunks),
		column.NewColumnInt64("chunk_index", indexes),
	))
	if err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}

	flushTask, err := p.client.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return nil, fmt.Errorf("flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return nil, fmt.Errorf("wait for flush: %w", err)
	}

	if err := p.load(ctx, name); err != nil {
		return nil, err
	}

	logger.Infow("Milvus collection ready", "collection", name, "vectors", len(chunks))
	return &milvusIndex{client: p.client, collection: name, size: len(chunks)}, nil
}

func (p *MilvusProvider) createCollection(ctx context.Context, name string, dim int) error {
	schema := entity.NewSchema().
		WithName(name).
		WithDescription("book chunk embeddings").
		WithAutoID(true).
		WithField(entity.NewField().
			WithName("id").
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().
			WithName("text").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(milvusTextMaxLen)).
		WithField(entity.NewField().
			WithName("chunk_index").
			WithDataType(entity.FieldTypeInt64))

	if err := p.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, milvusNlist)
	task, err := p.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, "embedding", idx))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for index creation: %w", err)
	}
	return nil
}

func (p *MilvusProvider) load(ctx context.Context, name string) error {
	task, err := p.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for collection loading: %w", err)
	}
	return nil
}

func (p *MilvusProvider) rowCount(ctx context.Context, name string) (int64, error) {
	stats, err := p.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
	if err != nil {
		return 0, fmt.Errorf("collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// milvusIndex searches one loaded collection.
type milvusIndex struct {
	client     *milvusclient.Client
	collection string
	size       int
}

var _ VectorIndex = (*milvusIndex)(nil)

func (ix *milvusIndex) Size() int {
	return ix.size
}

func (ix *milvusIndex) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	if topK > ix.size {
		topK = ix.size
	}

	resultSets, err := ix.client.Search(ctx, milvusclient.NewSearchOption(
		ix.collection,
		topK,
		[]entity.Vector{entity.FloatVector(query)},
	).WithANNSField("embedding").
		WithSearchParam("nprobe", milvusNprobe).
		WithOutputFields("text", "chunk_index"))
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}
	if len(resultSets) == 0 {
		return []SearchResult{}, nil
	}

	rs := resultSets[0]
	results := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{Score: rs.Scores[i]}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				if col.Name() == "text" {
					r.Text = col.Data()[i]
				}
			case *column.ColumnInt64:
				if col.Name() == "chunk_index" {
					r.Index = int(col.Data()[i])
				}
			}
		}
		results = append(results, r)
	}
	return results, nil
}
