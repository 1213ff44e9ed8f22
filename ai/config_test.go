package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.Equal(t, 300000, cfg.BatchTokenBudget)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Zero(t, cfg.RateLimit)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithProvider(ProviderGemini),
		WithEmbeddingHost("http://embed:8080/v1"),
		WithEmbeddingModel("custom-embed"),
		WithAPIKey("secret"),
		WithDimensions(768),
		WithBatchTokenBudget(1000),
		WithConcurrency(2),
		WithRateLimit(5),
	)

	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
	assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 768, cfg.Dimensions)
	assert.Equal(t, 1000, cfg.BatchTokenBudget)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5.0, cfg.RateLimit)
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantHost  string
		wantModel string
		wantProv  Provider
	}{
		{"already has /v1", Config{EmbeddingHost: "http://localhost:11434/v1"}, "http://localhost:11434/v1", "", ProviderOpenAI},
		{"missing /v1", Config{EmbeddingHost: "http://localhost:11434"}, "http://localhost:11434/v1", "", ProviderOpenAI},
		{"trailing slash", Config{EmbeddingHost: "http://localhost:11434/"}, "http://localhost:11434/v1", "", ProviderOpenAI},
		{"empty host", Config{}, "", "", ProviderOpenAI},
		{"provider case", Config{Provider: "OpenAI", EmbeddingHost: "http://h"}, "http://h/v1", "", ProviderOpenAI},
		{"gemini default model", Config{Provider: ProviderGemini, EmbeddingModel: DefaultEmbeddingModel, EmbeddingHost: "http://h"}, "http://h", DefaultGeminiModel, ProviderGemini},
		{"gemini custom model", Config{Provider: ProviderGemini, EmbeddingModel: "text-embedding-004"}, "", "text-embedding-004", ProviderGemini},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Normalize()

			assert.Equal(t, tt.wantHost, cfg.EmbeddingHost)
			assert.Equal(t, tt.wantModel, cfg.EmbeddingModel)
			assert.Equal(t, tt.wantProv, cfg.Provider)
		})
	}
}

func TestConfigNormalize_GeminiDimensions(t *testing.T) {
	cfg := NewConfig(WithProvider(ProviderGemini), WithAPIKey("k"))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultGeminiModel, cfg.EmbeddingModel)
	assert.Equal(t, 3072, cfg.Dimensions)

	cfg = NewConfig(WithProvider(ProviderGemini), WithEmbeddingModel("text-embedding-004"), WithDimensions(512))
	cfg.Normalize()
	assert.Equal(t, 512, cfg.Dimensions, "explicit dimensions are kept")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"mock needs no host", func(c *Config) { c.Provider = ProviderMock; c.EmbeddingHost = "" }, ""},
		{"missing host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost is required"},
		{"missing model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel is required"},
		{"gemini without key", func(c *Config) { c.Provider = ProviderGemini }, "APIKey is required"},
		{"unknown provider", func(c *Config) { c.Provider = "cohere" }, "unknown provider"},
		{"zero dimensions", func(c *Config) { c.Dimensions = 0 }, "Dimensions must be positive"},
		{"zero budget", func(c *Config) { c.BatchTokenBudget = 0 }, "BatchTokenBudget must be positive"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "Concurrency must be at least 1"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "RateLimit must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
