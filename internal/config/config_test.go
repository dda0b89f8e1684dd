package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultIsValid verifies the defaults pass their own validation.
func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

// TestValidate covers the rejection cases.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "verbose" }},
		{name: "negative epsilon", mutate: func(c *Config) { c.Epsilon = -0.1 }},
		{name: "epsilon above one", mutate: func(c *Config) { c.Epsilon = 1.5 }},
		{name: "zero max skills", mutate: func(c *Config) { c.MaxSkills = 0 }},
		{name: "zero skill timeout", mutate: func(c *Config) { c.SkillTimeoutSeconds = 0 }},
		{name: "unknown classifier mode", mutate: func(c *Config) { c.Classifier.Mode = "regex" }},
		{name: "llm mode without endpoint or key", mutate: func(c *Config) { c.Classifier.Mode = ClassifierModeLLM }},
		{name: "tracing enabled without endpoint", mutate: func(c *Config) { c.Tracing.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var confErr *ConfigError
			assert.ErrorAs(t, err, &confErr)
		})
	}
}

// TestLoad verifies YAML loading layered over defaults.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
epsilon: 0.1
budget:
  tokens: 2000
classifier:
  mode: llm
  endpoint: http://localhost:8080/v1
  model: qwen2.5
embedding:
  endpoint: http://localhost:8080/v1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.1, cfg.Epsilon, 1e-9)
	// Values absent from the file keep their defaults.
	assert.Equal(t, 2, cfg.MaxSkills)
	assert.EqualValues(t, 30_000, cfg.Budget.TimeMs)
	assert.Equal(t, 2000, cfg.Budget.Tokens)
	assert.Equal(t, ClassifierModeLLM, cfg.Classifier.Mode)
	assert.Equal(t, "qwen2.5", cfg.Classifier.Model)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Embedding.Endpoint)
}

// TestLoadErrors verifies file and validation failures surface.
func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epsilon: 7\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
