package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/llm"
)

func testProvider(baseURL string) *Provider {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 5 * time.Second
	return NewProviderWithConfig(cfg)
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := embedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	embeddings, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "expected 2 embeddings")
}

func TestEmbedNoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	_, err := p.EmbedSingle(context.Background(), "question")
	require.Error(t, err)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestEmbedRetriesWhenConfigured(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 2
	p := NewProviderWithConfig(cfg)

	_, err := p.EmbedSingle(context.Background(), "question")
	require.NoError(t, err)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "What is Go?", req.Prompt)
		assert.Equal(t, "30m", req.KeepAlive)
		assert.InDelta(t, 0.3, req.Options["temperature"], 1e-9)

		json.NewEncoder(w).Encode(generateResponse{Response: "Go is a language.", Done: true})
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	answer, err := p.Generate(context.Background(), "What is Go?", "You are helpful.")
	require.NoError(t, err)
	assert.Equal(t, "Go is a language.", answer)
}

func streamServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			io.WriteString(w, line+"\n")
		}
	}))
}

func TestGenerateStream(t *testing.T) {
	srv := streamServer(t, []string{
		`{"response":"Hello"}`,
		`{"response":""}`,
		`{"response":" world"}`,
		`{"response":"","done":true}`,
	})
	defer srv.Close()

	p := testProvider(srv.URL)
	ts, err := p.GenerateStream(context.Background(), "hi", "")
	require.NoError(t, err)

	answer, err := llm.Collect(ts)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", answer)
}

func TestGenerateStreamFinalFragmentWithContent(t *testing.T) {
	srv := streamServer(t, []string{
		`{"response":"almost"}`,
		`{"response":" done","done":true}`,
	})
	defer srv.Close()

	p := testProvider(srv.URL)
	ts, err := p.GenerateStream(context.Background(), "hi", "")
	require.NoError(t, err)

	answer, err := llm.Collect(ts)
	require.NoError(t, err)
	assert.Equal(t, "almost done", answer)
}

func TestGenerateStreamInterrupted(t *testing.T) {
	srv := streamServer(t, []string{
		`{"response":"partial"}`,
	})
	defer srv.Close()

	p := testProvider(srv.URL)
	ts, err := p.GenerateStream(context.Background(), "hi", "")
	require.NoError(t, err)

	_, err = llm.Collect(ts)
	assert.ErrorIs(t, err, errors.ErrStreamInterrupted)
}

func TestGenerateStreamBackendError(t *testing.T) {
	srv := streamServer(t, []string{
		`{"response":"a bit"}`,
		`{"error":"model crashed"}`,
	})
	defer srv.Close()

	p := testProvider(srv.URL)
	ts, err := p.GenerateStream(context.Background(), "hi", "")
	require.NoError(t, err)

	_, err = llm.Collect(ts)
	assert.ErrorIs(t, err, errors.ErrGenerationFailed)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	assert.NoError(t, p.Ping(context.Background()))

	srv.Close()
	assert.Error(t, p.Ping(context.Background()))
}

func TestEnsureModel(t *testing.T) {
	pulled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			io.WriteString(w, `{"models":[{"name":"qwen2.5:3b"}]}`)
		case "/api/pull":
			pulled = true
			io.WriteString(w, `{"status":"pulling manifest"}`+"\n")
			io.WriteString(w, `{"status":"success"}`+"\n")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	require.NoError(t, p.EnsureModel(context.Background(), "qwen2.5:3b"))
	assert.False(t, pulled)

	require.NoError(t, p.EnsureModel(context.Background(), "nomic-embed-text"))
	assert.True(t, pulled)
}

func TestRegistry(t *testing.T) {
	p, err := llm.NewProvider(ProviderName, map[string]any{"chat_model": "llama3"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
	assert.Contains(t, llm.ListProviders(), ProviderName)
}
