// Package config holds engine configuration and its YAML loader.
package config

import (
	"fmt"

	"github.com/diagx/converge/internal/logging"
)

// Config holds all configuration for the engine and its CLI.
//
// Confidence weights and status thresholds are a static policy and are
// deliberately not configurable.
type Config struct {
	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Epsilon is the router's exploration probability.
	Epsilon float64 `yaml:"epsilon"`

	// MaxSkills bounds how many skills run per turn.
	MaxSkills int `yaml:"max_skills"`

	// SkillTimeoutSeconds bounds one skill execution within a turn.
	SkillTimeoutSeconds int `yaml:"skill_timeout_seconds"`

	// Budget is the per-turn cost budget handed to skills.
	Budget BudgetConfig `yaml:"budget"`

	// Embedding configures the optional embedding provider used by the
	// loop guard. An empty endpoint disables loop detection.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Classifier selects and configures the evidence classifier.
	Classifier ClassifierConfig `yaml:"classifier"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`

	// Tracing configures OTLP trace export.
	Tracing TracingConfig `yaml:"tracing"`
}

// BudgetConfig mirrors the per-turn Budget.
type BudgetConfig struct {
	TimeMs int64 `yaml:"time_ms"`
	Tokens int   `yaml:"tokens"`
	Calls  int   `yaml:"calls"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Endpoint is an OpenAI-compatible embeddings endpoint.
	Endpoint string `yaml:"endpoint"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// APIKey authenticates against the endpoint. Local inference
	// servers usually accept any value.
	APIKey string `yaml:"api_key"`
}

// ClassifierConfig configures the evidence classifier.
type ClassifierConfig struct {
	// Mode selects the implementation: "keyword" or "llm".
	Mode string `yaml:"mode"`

	// Endpoint is an OpenAI-compatible chat endpoint (llm mode).
	Endpoint string `yaml:"endpoint"`

	// Model is the chat model name (llm mode).
	Model string `yaml:"model"`

	// APIKey authenticates against the endpoint (llm mode).
	APIKey string `yaml:"api_key"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Classifier modes.
const (
	ClassifierModeKeyword = "keyword"
	ClassifierModeLLM     = "llm"
)

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		LogLevel:            "info",
		Epsilon:             0.05,
		MaxSkills:           2,
		SkillTimeoutSeconds: 30,
		Budget:              BudgetConfig{TimeMs: 30_000, Tokens: 8_000, Calls: 4},
		Classifier:          ClassifierConfig{Mode: ClassifierModeKeyword},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !logging.ValidLevel(c.LogLevel) {
		return NewConfigError(fmt.Sprintf("log_level %q is not a valid level", c.LogLevel))
	}

	if c.Epsilon < 0 || c.Epsilon > 1 {
		return NewConfigError("epsilon must be in [0,1]")
	}

	if c.MaxSkills < 1 {
		return NewConfigError("max_skills must be at least 1")
	}

	if c.SkillTimeoutSeconds < 1 {
		return NewConfigError("skill_timeout_seconds must be at least 1")
	}

	switch c.Classifier.Mode {
	case ClassifierModeKeyword:
	case ClassifierModeLLM:
		if c.Classifier.Endpoint == "" && c.Classifier.APIKey == "" {
			return NewConfigError("classifier mode llm requires an endpoint or api_key")
		}
	default:
		return NewConfigError(fmt.Sprintf("classifier mode %q is not supported (keyword, llm)", c.Classifier.Mode))
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}
