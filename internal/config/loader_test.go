package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: ollama\n  model: qwen2.5:7b\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "qwen2.5:7b", cfg.LLM.Model)

	// Everything not set falls back to a sane default.
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NotNil(t, cfg.Agent.MaxRetries)
	assert.Equal(t, 2, *cfg.Agent.MaxRetries)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.2, *cfg.LLM.Temperature)
	assert.Equal(t, 60, cfg.Agent.ProcessTimeoutSeconds)
	assert.Equal(t, 50, cfg.Agent.SessionCap)
	assert.Equal(t, 300, cfg.Verification.TTLSeconds)
	assert.Equal(t, 2400, cfg.Redis.SessionTTLSeconds)
}

func TestLoadHonorsExplicitZeroes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  temperature: 0\nagent:\n  max_retries: 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Zero is a setting, not an absence.
	require.NotNil(t, cfg.Agent.MaxRetries)
	assert.Equal(t, 0, *cfg.Agent.MaxRetries)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.0, *cfg.LLM.Temperature)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: ["), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing YAML")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 10, cfg.Agent.ToolTimeoutSeconds)
}
