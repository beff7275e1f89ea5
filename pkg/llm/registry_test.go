package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/config"
)

func testRegistry(t *testing.T, yaml string) *config.ProviderRegistry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte(yaml), 0o600))
	cfg, err := config.Initialize(dir)
	require.NoError(t, err)
	return cfg.Providers
}

func TestResolveRequestWins(t *testing.T) {
	registry := testRegistry(t, `llm_providers:
  anthropic:
    type: anthropic
    default_model: claude-sonnet-4-5
`)
	binding, _, err := Resolve(registry, "anthropic", "claude-opus-4-1", "req-key")
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", binding.Model)
	assert.Equal(t, "req-key", binding.Credential)
}

func TestResolveDefaultsFill(t *testing.T) {
	registry := testRegistry(t, `llm_providers:
  anthropic:
    type: anthropic
    default_model: claude-sonnet-4-5
    api_key_env: TEST_ANTHROPIC_KEY
`)
	t.Setenv("TEST_ANTHROPIC_KEY", "env-key")

	binding, cfg, err := Resolve(registry, "anthropic", "", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", binding.Model)
	assert.Equal(t, "env-key", binding.Credential)
	assert.Equal(t, "anthropic", cfg.Type)
}

func TestResolveUnknownProvider(t *testing.T) {
	registry := testRegistry(t, "llm_providers: {}\n")
	_, _, err := Resolve(registry, "nonexistent", "m", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown LLM provider "nonexistent"`)
}

func TestResolveNoModelAnywhere(t *testing.T) {
	registry := testRegistry(t, `llm_providers:
  bare:
    type: openai
`)
	_, _, err := Resolve(registry, "bare", "", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model given")
}
