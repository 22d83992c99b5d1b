package bookrag

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/bookrag/internal/bookrag/biz"
	"github.com/kart-io/bookrag/internal/bookrag/handler"
	"github.com/kart-io/bookrag/internal/bookrag/router"
	"github.com/kart-io/bookrag/internal/bookrag/store"
	"github.com/kart-io/bookrag/pkg/llm"
	"github.com/kart-io/bookrag/pkg/llm/ollama"
	"github.com/kart-io/bookrag/pkg/middleware"
	ragopts "github.com/kart-io/bookrag/pkg/options/rag"
	"github.com/kart-io/bookrag/pkg/pool"
	"github.com/kart-io/bookrag/pkg/server"
)

// Server is the assembled bookrag service.
type Server struct {
	opts       *ServerOptions
	httpServer *server.Server
	registry   *biz.Registry
	workers    *pool.Pool
	redis      *goredis.Client
	milvus     *store.MilvusProvider
}

// NewServer builds the full service: LLM provider, vector store
// backend, query cache, engines for every configured book, and the
// HTTP server. Book ingestion runs here, so the call can take a while
// on a cold cache.
func NewServer(ctx context.Context, opts *ServerOptions) (*Server, error) {
	s := &Server{opts: opts}

	workers, err := pool.New("bookrag", pool.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	s.workers = workers

	provider, err := newLLMProvider(opts)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	logger.Infow("LLM provider initialized", "provider", provider.Name())

	storeProvider, err := s.newStoreProvider(ctx)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	chatModel := ""
	if cm, ok := provider.(interface{ ChatModel() string }); ok {
		chatModel = cm.ChatModel()
	}

	s.registry = biz.NewRegistry(&biz.RegistryConfig{
		Options:       opts.RAGOptions,
		EmbedProvider: provider,
		ChatProvider:  provider,
		StoreProvider: storeProvider,
		Workers:       workers,
		ChatModel:     chatModel,
		EnsureModels:  []string{opts.OllamaOptions.EmbedModel, opts.OllamaOptions.ChatModel},
	})
	if err := s.registry.Init(ctx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("initialize books: %w", err)
	}

	cache := s.newQueryCache(ctx)

	s.httpServer = server.New(opts.HTTPOptions, server.WithShutdownTimeout(opts.ShutdownTimeout))
	if len(opts.HTTPOptions.CORSOrigins) > 0 {
		s.httpServer.Engine().Use(middleware.CORS(opts.HTTPOptions.CORSOrigins))
	}
	h := handler.New(s.registry, cache, opts.RAGOptions.QueryTimeout)
	router.Register(s.httpServer.Engine(), h, opts.HTTPOptions.APIKeys)

	return s, nil
}

// newLLMProvider creates the configured provider through the factory
// registry. The ollama section only applies to the ollama provider;
// other providers fall back to their own defaults and environment.
func newLLMProvider(opts *ServerOptions) (llm.Provider, error) {
	var cfg map[string]any
	if opts.LLMProvider == ollama.ProviderName {
		cfg = opts.OllamaOptions.ToConfigMap()
	}

	provider, err := llm.NewProvider(opts.LLMProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", opts.LLMProvider, err)
	}
	return provider, nil
}

func (s *Server) newStoreProvider(ctx context.Context) (store.Provider, error) {
	switch s.opts.RAGOptions.Backend {
	case ragopts.BackendMilvus:
		mp, err := store.NewMilvusProvider(ctx, s.opts.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("create milvus provider: %w", err)
		}
		s.milvus = mp
		return mp, nil
	default:
		return store.NewFlatProvider(s.opts.RAGOptions.DataDir), nil
	}
}

// newQueryCache connects to Redis when the cache is enabled. An
// unreachable Redis disables caching instead of failing startup.
func (s *Server) newQueryCache(ctx context.Context) *biz.QueryCache {
	ropts := s.opts.RedisOptions
	if !ropts.Enabled {
		return biz.NewQueryCache(nil, 0)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         ropts.Addr(),
		Password:     ropts.Password,
		DB:           ropts.Database,
		MaxRetries:   ropts.MaxRetries,
		PoolSize:     ropts.PoolSize,
		DialTimeout:  ropts.DialTimeout,
		ReadTimeout:  ropts.ReadTimeout,
		WriteTimeout: ropts.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, ropts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("Redis unreachable, query cache disabled", "addr", ropts.Addr(), "error", err)
		_ = client.Close()
		return biz.NewQueryCache(nil, 0)
	}

	s.redis = client
	logger.Infow("Query cache enabled", "addr", ropts.Addr(), "ttl", ropts.TTL)
	return biz.NewQueryCache(client, ropts.TTL)
}

// Run serves HTTP until ctx is cancelled, then cleans up.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close(context.Background())
	return s.httpServer.Run(ctx)
}

// Close releases the server's resources.
func (s *Server) Close(ctx context.Context) {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.milvus != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = s.milvus.Close(closeCtx)
	}
	if s.workers != nil {
		s.workers.Release()
	}
}
