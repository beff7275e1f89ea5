package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/metrics"
)

// Binding is the resolved AI binding for one request: provider configuration
// merged with the request's own provider/model/credential fields.
type Binding struct {
	Provider   string
	Model      string
	Credential string
}

// Resolve merges a request's AI binding with the provider registry's
// defaults. The request's model and credential win; registry defaults fill
// the gaps.
func Resolve(registry *config.ProviderRegistry, provider, model, credential string) (Binding, config.LLMProviderConfig, error) {
	cfg, ok := registry.Get(provider)
	if !ok {
		return Binding{}, config.LLMProviderConfig{}, fmt.Errorf("unknown LLM provider %q", provider)
	}
	if model == "" {
		model = cfg.DefaultModel
	}
	if model == "" {
		return Binding{}, cfg, fmt.Errorf("no model given for provider %q and no default configured", provider)
	}
	if credential == "" && cfg.APIKeyEnv != "" {
		credential = os.Getenv(cfg.APIKeyEnv)
	}
	return Binding{Provider: provider, Model: model, Credential: credential}, cfg, nil
}

// NewClient constructs the SDK adapter for a resolved binding, wrapped with
// per-provider call metrics.
func NewClient(ctx context.Context, binding Binding, cfg config.LLMProviderConfig) (Client, error) {
	var client Client
	var err error
	switch cfg.Type {
	case "anthropic":
		client, err = NewAnthropicClient(binding.Credential, binding.Model, cfg.BaseURL)
	case "openai":
		client, err = NewOpenAIClient(binding.Credential, binding.Model, cfg.BaseURL)
	case "gemini":
		client, err = NewGeminiClient(ctx, binding.Credential, binding.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return &meteredClient{inner: client, provider: binding.Provider}, nil
}

// meteredClient counts provider calls by outcome.
type meteredClient struct {
	inner    Client
	provider string
}

func (m *meteredClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := m.inner.Generate(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.LLMCalls.WithLabelValues(m.provider, outcome).Inc()
	return resp, err
}

func (m *meteredClient) Close() error { return m.inner.Close() }
