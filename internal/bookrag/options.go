// Package bookrag assembles the book question-answering server from
// its configuration.
package bookrag

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/bookrag/pkg/app/cliflag"
	ollamaprov "github.com/kart-io/bookrag/pkg/llm/ollama"
	logopts "github.com/kart-io/bookrag/pkg/options/logger"
	milvusopts "github.com/kart-io/bookrag/pkg/options/milvus"
	ollamaopts "github.com/kart-io/bookrag/pkg/options/ollama"
	ragopts "github.com/kart-io/bookrag/pkg/options/rag"
	redisopts "github.com/kart-io/bookrag/pkg/options/redis"
	httpopts "github.com/kart-io/bookrag/pkg/options/server/http"
)

// ServerOptions holds the full server configuration, populated from
// flags, config file, and environment.
type ServerOptions struct {
	HTTPOptions   *httpopts.Options   `json:"http" mapstructure:"http"`
	LogOptions    *logopts.Options    `json:"log" mapstructure:"log"`
	OllamaOptions *ollamaopts.Options `json:"ollama" mapstructure:"ollama"`
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
	RedisOptions  *redisopts.Options  `json:"redis" mapstructure:"redis"`
	RAGOptions    *ragopts.Options    `json:"rag" mapstructure:"rag"`

	// LLMProvider names the registered provider factory used for
	// embeddings and generation.
	LLMProvider string `json:"llm-provider" mapstructure:"llm-provider"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates ServerOptions with defaults.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:     httpopts.NewOptions(),
		LogOptions:      logopts.NewOptions(),
		OllamaOptions:   ollamaopts.NewOptions(),
		MilvusOptions:   milvusopts.NewOptions(),
		RedisOptions:    redisopts.NewOptions(),
		RAGOptions:      ragopts.NewOptions(),
		LLMProvider:     ollamaprov.ProviderName,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Flags returns the flags grouped by section.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.OllamaOptions.AddFlags(fss.FlagSet("ollama"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))

	fs := fss.FlagSet("misc")
	fs.StringVar(&o.LLMProvider, "llm-provider", o.LLMProvider, "Registered LLM provider (ollama, openai)")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
	return fss
}

// Complete fills in derived defaults.
func (o *ServerOptions) Complete() error {
	return o.RAGOptions.Complete()
}

// Validate checks every section.
func (o *ServerOptions) Validate() error {
	var errs []error
	if o.LLMProvider == "" {
		errs = append(errs, fmt.Errorf("llm-provider is required"))
	}
	errs = append(errs, o.HTTPOptions.Validate()...)
	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.OllamaOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	if o.RAGOptions.Backend == ragopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}
