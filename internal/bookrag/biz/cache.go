package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/bookrag/internal/model"
)

// cacheKeyPrefix namespaces query cache entries in Redis.
const cacheKeyPrefix = "bookrag:query:"

// QueryCache memoizes complete (non-streamed) answers in Redis. A nil
// or disabled cache is a no-op, so callers never branch on it.
type QueryCache struct {
	redis *goredis.Client
	ttl   time.Duration
}

// NewQueryCache creates a query cache. redis may be nil to disable
// caching entirely.
func NewQueryCache(redis *goredis.Client, ttl time.Duration) *QueryCache {
	return &QueryCache{redis: redis, ttl: ttl}
}

func (c *QueryCache) enabled() bool {
	return c != nil && c.redis != nil
}

// cacheKey hashes the book, question, and result count into one key so
// the same question against different books or depths never collides.
func cacheKey(book, question string, topK int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d", book, question, topK)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached answer for the query, or nil on a miss. Redis
// failures degrade to a miss.
func (c *QueryCache) Get(ctx context.Context, book, question string, topK int) *model.QueryResponse {
	if !c.enabled() {
		return nil
	}

	key := cacheKey(book, question, topK)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("Query cache read failed", "key", key, "error", err)
		}
		return nil
	}

	var resp model.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warnw("Dropping corrupt cache entry", "key", key, "error", err)
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}

	resp.Cached = true
	return &resp
}

// Set stores a complete answer. Failures are logged and swallowed.
func (c *QueryCache) Set(ctx context.Context, book, question string, topK int, resp *model.QueryResponse) {
	if !c.enabled() {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warnw("Query cache marshal failed", "error", err)
		return
	}

	key := cacheKey(book, question, topK)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warnw("Query cache write failed", "key", key, "error", err)
	}
}

// Clear removes every cached query. Used when an index is rebuilt.
func (c *QueryCache) Clear(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}
