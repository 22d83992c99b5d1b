// Package ollamaopts provides options for Ollama client configuration.
package ollamaopts

import (
	"fmt"
	"time"

	"github.com/kart-io/bookrag/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Ollama client configuration.
type Options struct {
	// BaseURL is the Ollama API base URL.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// EmbedModel is the model for generating embeddings.
	EmbedModel string `json:"embed-model" mapstructure:"embed-model"`

	// ChatModel is the model for chat completion.
	ChatModel string `json:"chat-model" mapstructure:"chat-model"`

	// Timeout for API requests.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of automatic retries for failed
	// requests. Zero surfaces the first failure immediately; retrying
	// is opt-in.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// KeepAlive controls how long the backend keeps the model loaded
	// after a request, in Ollama duration syntax (for example "30m").
	KeepAlive string `json:"keep-alive" mapstructure:"keep-alive"`

	// Temperature is the sampling temperature for generation.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// TopP is the nucleus sampling threshold for generation.
	TopP float64 `json:"top-p" mapstructure:"top-p"`

	// NumPredict caps the number of tokens generated per answer.
	NumPredict int `json:"num-predict" mapstructure:"num-predict"`

	// NumCtx is the context window size passed to the backend.
	NumCtx int `json:"num-ctx" mapstructure:"num-ctx"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
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

// ToConfigMap converts the options into the map consumed by the LLM
// provider factory.
func (o *Options) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"embed_model": o.EmbedModel,
		"chat_model":  o.ChatModel,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
		"keep_alive":  o.KeepAlive,
		"temperature": o.Temperature,
		"top_p":       o.TopP,
		"num_predict": o.NumPredict,
		"num_ctx":     o.NumCtx,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseURL, options.Join(prefixes...)+"ollama.base-url", o.BaseURL, "Ollama API base URL")
	fs.StringVar(&o.EmbedModel, options.Join(prefixes...)+"ollama.embed-model", o.EmbedModel, "Model for embeddings")
	fs.StringVar(&o.ChatModel, options.Join(prefixes...)+"ollama.chat-model", o.ChatModel, "Model for chat completion")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"ollama.timeout", o.Timeout, "Request timeout")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"ollama.max-retries", o.MaxRetries, "Automatic retries for failed requests (0 disables)")
	fs.StringVar(&o.KeepAlive, options.Join(prefixes...)+"ollama.keep-alive", o.KeepAlive, "How long the backend keeps the model loaded")
	fs.Float64Var(&o.Temperature, options.Join(prefixes...)+"ollama.temperature", o.Temperature, "Sampling temperature")
	fs.Float64Var(&o.TopP, options.Join(prefixes...)+"ollama.top-p", o.TopP, "Nucleus sampling threshold")
	fs.IntVar(&o.NumPredict, options.Join(prefixes...)+"ollama.num-predict", o.NumPredict, "Max tokens generated per answer")
	fs.IntVar(&o.NumCtx, options.Join(prefixes...)+"ollama.num-ctx", o.NumCtx, "Context window size")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("ollama base-url is required"))
	}
	if o.EmbedModel == "" {
		errs = append(errs, fmt.Errorf("ollama embed-model is required"))
	}
	if o.ChatModel == "" {
		errs = append(errs, fmt.Errorf("ollama chat-model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ollama timeout must be positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ollama temperature must be in [0, 2]"))
	}
	if o.TopP <= 0 || o.TopP > 1 {
		errs = append(errs, fmt.Errorf("ollama top-p must be in (0, 1]"))
	}
	return errs
}
