// Package openai provides an OpenAI-compatible LLM provider built on
// the go-openai client. It also serves Azure OpenAI, LocalAI and other
// API-compatible backends through base_url.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	bizerrors "github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/llm"
)

const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config contains OpenAI provider configuration.
type Config struct {
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	APIKey      string        `json:"api_key" mapstructure:"api_key"`
	EmbedModel  string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel   string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	TopP        float64       `json:"top_p" mapstructure:"top_p"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the default configuration. The API key falls
// back to the OPENAI_API_KEY environment variable.
func DefaultConfig() *Config {
	return &Config{
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		EmbedModel: string(gopenai.SmallEmbedding3),
		ChatModel:  gopenai.GPT4oMini,
		Timeout:    120 * time.Second,
	}
}

// Provider implements llm.Provider against an OpenAI-compatible API.
type Provider struct {
	config *Config
	client *gopenai.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider creates an OpenAI provider from a config map.
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
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
	if v, ok := configMap["temperature"].(float64); ok && v > 0 {
		cfg.Temperature = v
	}
	if v, ok := configMap["top_p"].(float64); ok && v > 0 {
		cfg.TopP = v
	}
	if v, ok := configMap["max_tokens"].(int); ok && v > 0 {
		cfg.MaxTokens = v
	}

	return NewProviderWithConfig(cfg)
}

// NewProviderWithConfig creates an OpenAI provider from a structured config.
func NewProviderWithConfig(cfg *Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}

	clientCfg := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		config: cfg,
		client: gopenai.NewClientWithConfig(clientCfg),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// ChatModel returns the configured chat model.
func (p *Provider) ChatModel() string {
	return p.config.ChatModel
}

// Embed generates embeddings for multiple texts.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, gopenai.EmbeddingRequest{
		Model: gopenai.EmbeddingModel(p.config.EmbedModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
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

func (p *Provider) chatRequest(prompt, systemPrompt string, stream bool) gopenai.ChatCompletionRequest {
	var messages []gopenai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, gopenai.ChatCompletionMessage{
			Role:    gopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, gopenai.ChatCompletionMessage{
		Role:    gopenai.ChatMessageRoleUser,
		Content: prompt,
	})

	return gopenai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Messages:    messages,
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxTokens,
		Stream:      stream,
	}
}

// Generate produces a complete answer for the prompt.
func (p *Provider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(prompt, systemPrompt, false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream produces the answer incrementally.
func (p *Provider) GenerateStream(ctx context.Context, prompt, systemPrompt string) (llm.TokenStream, error) {
	s, err := p.client.CreateChatCompletionStream(ctx, p.chatRequest(prompt, systemPrompt, true))
	if err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}
	return &stream{inner: s}, nil
}

// stream adapts the go-openai stream to llm.TokenStream.
type stream struct {
	inner *gopenai.ChatCompletionStream
}

func (s *stream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", bizerrors.ErrStreamInterrupted.WithCause(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *stream) Close() error {
	return s.inner.Close()
}
