// Package ollama provides the Ollama LLM provider implementation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kart-io/bookrag/pkg/llm"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config contains Ollama provider configuration.
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of automatic retries on a failed
	// request. Zero, the default, surfaces the first failure
	// immediately.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// KeepAlive controls how long the backend keeps the model loaded
	// after a request, in Ollama duration syntax.
	KeepAlive string `json:"keep_alive" mapstructure:"keep_alive"`

	// Generation sampling parameters.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	TopP        float64 `json:"top_p" mapstructure:"top_p"`
	NumPredict  int     `json:"num_predict" mapstructure:"num_predict"`
	NumCtx      int     `json:"num_ctx" mapstructure:"num_ctx"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:11434",
		EmbedModel:  "nomic-embed-text",
		ChatModel:   "qwen2.5:3b",
		Timeout:     120 * time.Second,
		MaxRetries:  0,
		KeepAlive:   "30m",
		Temperature: 0.3,
		TopP:        0.9,
		NumPredict:  384,
		NumCtx:      2048,
	}
}

// Provider implements llm.Provider against an Ollama server.
type Provider struct {
	config     *Config
	httpClient *http.Client

	// streamClient has no HTTP timeout of its own. Token streams are
	// bounded by the deadline on the caller's context instead; an HTTP
	// timeout would cut long answers mid-body.
	streamClient *http.Client
}

var (
	_ llm.Provider     = (*Provider)(nil)
	_ llm.Pinger       = (*Provider)(nil)
	_ llm.ModelManager = (*Provider)(nil)
)

// NewProvider creates an Ollama provider from a config map.
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["keep_alive"].(string); ok && v != "" {
		cfg.KeepAlive = v
	}
	if v, ok := configMap["temperature"].(float64); ok && v > 0 {
		cfg.Temperature = v
	}
	if v, ok := configMap["top_p"].(float64); ok && v > 0 {
		cfg.TopP = v
	}
	if v, ok := configMap["num_predict"].(int); ok && v > 0 {
		cfg.NumPredict = v
	}
	if v, ok := configMap["num_ctx"].(int); ok && v > 0 {
		cfg.NumCtx = v
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig creates an Ollama provider from a structured config.
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config:       cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// ChatModel returns the configured chat model.
func (p *Provider) ChatModel() string {
	return p.config.ChatModel
}

// EmbedModel returns the configured embedding model.
func (p *Provider) EmbedModel() string {
	return p.config.EmbedModel
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for multiple texts.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: p.config.EmbedModel, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.doRequestWithRetry(ctx, http.MethodPost, "/api/embed", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embedResp.Embeddings))
	}
	return embedResp.Embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

type generateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (p *Provider) generateOptions() map[string]any {
	return map[string]any{
		"temperature": p.config.Temperature,
		"top_p":       p.config.TopP,
		"num_predict": p.config.NumPredict,
		"num_ctx":     p.config.NumCtx,
	}
}

// Generate produces a complete answer for the prompt.
func (p *Provider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:     p.config.ChatModel,
		Prompt:    prompt,
		System:    systemPrompt,
		Stream:    false,
		KeepAlive: p.config.KeepAlive,
		Options:   p.generateOptions(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.doRequestWithRetry(ctx, http.MethodPost, "/api/generate", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("backend error: %s", genResp.Error)
	}
	return genResp.Response, nil
}

// GenerateStream produces the answer incrementally over NDJSON.
func (p *Provider) GenerateStream(ctx context.Context, prompt, systemPrompt string) (llm.TokenStream, error) {
	body, err := json.Marshal(generateRequest{
		Model:     p.config.ChatModel,
		Prompt:    prompt,
		System:    systemPrompt,
		Stream:    true,
		KeepAlive: p.config.KeepAlive,
		Options:   p.generateOptions(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return newStream(resp), nil
}

// Warmup loads the chat model by generating a single token.
func (p *Provider) Warmup(ctx context.Context) error {
	body, err := json.Marshal(generateRequest{
		Model:     p.config.ChatModel,
		Prompt:    "Hi",
		Stream:    false,
		KeepAlive: p.config.KeepAlive,
		Options:   map[string]any{"num_predict": 1},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.doRequestWithRetry(ctx, http.MethodPost, "/api/generate", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Ping checks whether the Ollama server is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unavailable, status %d", resp.StatusCode)
	}
	return nil
}

// ListModels lists the models available on the server.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.doRequestWithRetry(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

// doRequestWithRetry executes the request with exponential backoff.
// A new request is built per attempt so the body can be re-read.
func (p *Provider) doRequestWithRetry(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var lastErr error
	for i := 0; i <= p.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * 500 * time.Millisecond):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}
