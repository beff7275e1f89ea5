// Package config loads process configuration: pipeline defaults from the
// environment and the LLM-provider registry from llm-providers.yaml.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the umbrella configuration object returned by Initialize.
type Config struct {
	Defaults  *Defaults
	Providers *ProviderRegistry

	// RetrievalBaseURL is the base URL of the code-retrieval service.
	// Empty disables retrieval (batches run with no context).
	RetrievalBaseURL string
}

// LLMProviderConfig is one entry in llm-providers.yaml. Per-request values
// (model, credential) override these defaults.
type LLMProviderConfig struct {
	// Type selects the SDK adapter: anthropic, openai, or gemini.
	Type string `yaml:"type"`
	// DefaultModel is used when the request omits a model.
	DefaultModel string `yaml:"default_model,omitempty"`
	// APIKeyEnv names the environment variable holding the fallback
	// credential for requests that omit one.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	// BaseURL overrides the provider endpoint (proxies, regional hosts).
	BaseURL string `yaml:"base_url,omitempty"`
	// MaxTokens caps completion size when the request has no cap of its own.
	MaxTokens int `yaml:"max_tokens,omitempty"`
}

// ProviderRegistry maps provider identifiers to their configuration.
type ProviderRegistry struct {
	providers map[string]LLMProviderConfig
}

// Get returns the configuration for a provider identifier.
func (r *ProviderRegistry) Get(name string) (LLMProviderConfig, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int { return len(r.providers) }

// builtinProviders are available without any YAML file. Each maps a provider
// identifier onto its SDK adapter with the conventional credential variable.
var builtinProviders = map[string]LLMProviderConfig{
	"anthropic": {Type: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY"},
	"openai":    {Type: "openai", APIKeyEnv: "OPENAI_API_KEY"},
	"gemini":    {Type: "gemini", APIKeyEnv: "GEMINI_API_KEY"},
}

type providersYAML struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads configuration from the environment and, when present,
// llm-providers.yaml in configDir. User-defined providers override built-ins
// with the same name.
func Initialize(configDir string) (*Config, error) {
	providers := make(map[string]LLMProviderConfig, len(builtinProviders))
	for name, p := range builtinProviders {
		providers[name] = p
	}

	path := filepath.Join(configDir, "llm-providers.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed providersYAML
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for name, p := range parsed.LLMProviders {
			if p.Type == "" {
				return nil, fmt.Errorf("provider %q in %s has no type", name, path)
			}
			providers[name] = p
		}
	case os.IsNotExist(err):
		slog.Info("No llm-providers.yaml found, using built-in providers", "path", path)
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := &Config{
		Defaults:         Load(),
		Providers:        &ProviderRegistry{providers: providers},
		RetrievalBaseURL: os.Getenv("RETRIEVAL_SERVICE_URL"),
	}

	slog.Info("Configuration initialized",
		"providers", cfg.Providers.Len(),
		"retrieval_enabled", cfg.RetrievalBaseURL != "")
	return cfg, nil
}
