package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/bookrag/internal/bookrag/biz"
	"github.com/kart-io/bookrag/internal/bookrag/handler"
	"github.com/kart-io/bookrag/internal/bookrag/router"
	"github.com/kart-io/bookrag/internal/bookrag/store"
	"github.com/kart-io/bookrag/internal/model"
	"github.com/kart-io/bookrag/pkg/llm"
	ragopts "github.com/kart-io/bookrag/pkg/options/rag"
	"github.com/kart-io/bookrag/pkg/pool"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProvider answers every question with a fixed string and embeds
// text deterministically.
type stubProvider struct {
	answer string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 4)
		for j, r := range text {
			v[j%4] += float32(r)
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	rows, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *stubProvider) Generate(context.Context, string, string) (string, error) {
	return s.answer, nil
}

func (s *stubProvider) GenerateStream(context.Context, string, string) (llm.TokenStream, error) {
	return &sliceStream{tokens: strings.SplitAfter(s.answer, " ")}, nil
}

type sliceStream struct {
	tokens []string
	pos    int
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.tokens) {
		return "", io.EOF
	}
	token := s.tokens[s.pos]
	s.pos++
	return token, nil
}

func (s *sliceStream) Close() error { return nil }

// silentProvider opens a token stream that never produces a token, so
// the only thing that can end the request is its deadline.
type silentProvider struct {
	stubProvider
}

func (p *silentProvider) GenerateStream(ctx context.Context, _, _ string) (llm.TokenStream, error) {
	return &silentStream{ctx: ctx}, nil
}

type silentStream struct {
	ctx context.Context
}

func (s *silentStream) Recv() (string, error) {
	<-s.ctx.Done()
	return "", s.ctx.Err()
}

func (s *silentStream) Close() error { return nil }

func writeBook(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "Chapter %d follows Alice on her long journey through wonderland in detail. ", i)
	}
	path := filepath.Join(t.TempDir(), "alice.txt")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))
	return path
}

func newTestServer(t *testing.T, apiKeys []string, initialize bool) *gin.Engine {
	t.Helper()
	return newTestServerWith(t, apiKeys, initialize,
		&stubProvider{answer: "She follows the white rabbit."}, time.Minute)
}

func newTestServerWith(t *testing.T, apiKeys []string, initialize bool, provider llm.Provider, queryTimeout time.Duration) *gin.Engine {
	t.Helper()

	opts := ragopts.NewOptions()
	opts.ChunkSize = 150
	opts.ChunkOverlap = 30
	opts.TopK = 2
	opts.Warmup = false
	opts.Books = []ragopts.BookOptions{{ID: "alice", Title: "Alice in Wonderland", Path: writeBook(t)}}

	workers, err := pool.New("test", pool.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(workers.Release)

	reg := biz.NewRegistry(&biz.RegistryConfig{
		Options:       opts,
		EmbedProvider: provider,
		ChatProvider:  provider,
		StoreProvider: store.NewFlatProvider(t.TempDir()),
		Workers:       workers,
		ChatModel:     "qwen2.5:3b",
	})
	if initialize {
		require.NoError(t, reg.Init(context.Background()))
	}

	engine := gin.New()
	h := handler.New(reg, biz.NewQueryCache(nil, 0), queryTimeout)
	router.Register(engine, h, apiKeys)
	return engine
}

func postQuery(t *testing.T, engine *gin.Engine, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestQuery(t *testing.T) {
	engine := newTestServer(t, nil, true)

	w := postQuery(t, engine, model.QueryRequest{Question: "what does Alice do?", Book: "alice"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "She follows the white rabbit.", resp.Answer)
	assert.True(t, strings.HasPrefix(resp.ID, "rag-"))
	assert.Equal(t, "qwen2.5:3b", resp.Model)
	assert.Len(t, resp.Sources, 2)
	assert.NotZero(t, resp.Created)
}

func TestQueryUnknownBook(t *testing.T) {
	engine := newTestServer(t, nil, true)

	w := postQuery(t, engine, model.QueryRequest{Question: "hello", Book: "narnia"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Available: alice")
}

func TestQueryValidation(t *testing.T) {
	engine := newTestServer(t, nil, true)

	tests := []struct {
		name string
		body any
	}{
		{"missing question", map[string]any{"book": "alice"}},
		{"missing book", map[string]any{"question": "hi"}},
		{"question too long", map[string]any{"question": strings.Repeat("x", 2001), "book": "alice"}},
		{"top_k out of range", map[string]any{"question": "hi", "book": "alice", "top_k": 99}},
		{"temperature out of range", map[string]any{"question": "hi", "book": "alice", "temperature": 3.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postQuery(t, engine, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestQueryEngineNotReady(t *testing.T) {
	engine := newTestServer(t, nil, false)

	w := postQuery(t, engine, model.QueryRequest{Question: "hello", Book: "alice"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestQueryStream(t *testing.T) {
	engine := newTestServer(t, nil, true)

	w := postQuery(t, engine, model.QueryRequest{Question: "what does Alice do?", Book: "alice", Stream: true}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	var answer strings.Builder
	var sawDone, sawSentinel bool

	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			sawSentinel = true
			continue
		}

		var chunk model.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		assert.True(t, strings.HasPrefix(chunk.ID, "rag-"))
		if chunk.Done {
			sawDone = true
			assert.Empty(t, chunk.Delta)
			continue
		}
		answer.WriteString(chunk.Delta)
	}

	assert.Equal(t, "She follows the white rabbit.", answer.String())
	assert.True(t, sawDone)
	assert.True(t, sawSentinel)
}

func TestQueryStreamDeadline(t *testing.T) {
	engine := newTestServerWith(t, nil, true, &silentProvider{}, 50*time.Millisecond)

	start := time.Now()
	w := postQuery(t, engine, model.QueryRequest{Question: "what does Alice do?", Book: "alice", Stream: true}, nil)
	elapsed := time.Since(start)

	// The stream commits a 200, so the deadline surfaces as an error
	// frame rather than an error status, and no [DONE] follows.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, elapsed, 5*time.Second)
	assert.Contains(t, w.Body.String(), `"error"`)
	assert.NotContains(t, w.Body.String(), "[DONE]")
}

func TestHealthOpenAndReady(t *testing.T) {
	engine := newTestServer(t, []string{"secret-key"}, true)

	// No API key needed for health.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "qwen2.5:3b", resp.Model)
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "Alice in Wonderland", resp.Books[0].Name)
	assert.Greater(t, resp.Books[0].IndexSize, 0)
}

func TestAuthRequired(t *testing.T) {
	engine := newTestServer(t, []string{"secret-key"}, true)

	w := postQuery(t, engine, model.QueryRequest{Question: "hello", Book: "alice"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postQuery(t, engine, model.QueryRequest{Question: "hello", Book: "alice"},
		map[string]string{"Authorization": "Bearer secret-key"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBooksAndStats(t *testing.T) {
	engine := newTestServer(t, nil, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/books", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"alice"`)

	req = httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "queries_total")
}
