// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names an embedding backend.
type Provider string

const (
	// ProviderOpenAI is any OpenAI-compatible embeddings API (OpenAI, Ollama, vLLM, LocalAI).
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini embeddings API.
	ProviderGemini Provider = "gemini"
	// ProviderMock produces deterministic vectors without any network access.
	ProviderMock Provider = "mock"
)

const (
	DefaultEmbeddingHost    = "https://api.openai.com/v1"
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultGeminiModel      = "gemini-embedding-001"
	DefaultDimensions       = 1536
	DefaultBatchTokenBudget = 300000
	DefaultConcurrency      = 4
)

// geminiDimensions lists the output length of known Gemini embedding models.
var geminiDimensions = map[string]int{
	"gemini-embedding-001": 3072,
	"text-embedding-004":   768,
	"embedding-001":        768,
}

// Config holds configuration for embedding providers.
type Config struct {
	// Provider selects the embedding backend. Default: openai
	Provider Provider

	// EmbeddingHost is the base URL of an OpenAI-compatible API.
	// Example: "http://localhost:11434/v1" for a local Ollama server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small", "gemini-embedding-001"
	EmbeddingModel string

	// APIKey authenticates against the provider. Optional for local
	// OpenAI-compatible servers, required for Gemini.
	APIKey string

	// Dimensions is the fixed length of every vector. Changing it requires
	// re-embedding all stored chunks.
	// Default: 1536
	Dimensions int

	// BatchTokenBudget is the largest number of tokens sent in one request.
	// Default: 300000
	BatchTokenBudget int

	// Concurrency is the number of embedding requests in flight at once.
	// Default: 4
	Concurrency int

	// RateLimit caps provider requests per second. Zero disables limiting.
	RateLimit float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the embedding backend.
func WithProvider(p Provider) ConfigOption {
	return func(c *Config) {
		c.Provider = p
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the provider credential.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the vector length.
func WithDimensions(n int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = n
	}
}

// WithBatchTokenBudget sets the per-request token budget.
func WithBatchTokenBudget(n int) ConfigOption {
	return func(c *Config) {
		c.BatchTokenBudget = n
	}
}

// WithConcurrency sets the number of concurrent embedding requests.
func WithConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithRateLimit caps provider requests per second.
func WithRateLimit(rps float64) ConfigOption {
	return func(c *Config) {
		c.RateLimit = rps
	}
}

// DefaultConfig returns a Config for the hosted OpenAI embeddings API.
func DefaultConfig() *Config {
	return &Config{
		Provider:         ProviderOpenAI,
		EmbeddingHost:    DefaultEmbeddingHost,
		EmbeddingModel:   DefaultEmbeddingModel,
		Dimensions:       DefaultDimensions,
		BatchTokenBudget: DefaultBatchTokenBudget,
		Concurrency:      DefaultConcurrency,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithDimensions(768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts the configuration in canonical form. OpenAI-compatible
// hosts get a /v1 suffix. A Gemini config left with the OpenAI defaults
// switches to the Gemini model and its native dimensions.
func (c *Config) Normalize() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	c.Provider = Provider(strings.ToLower(string(c.Provider)))

	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
			c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
		}
	case ProviderGemini:
		if c.EmbeddingModel == "" || c.EmbeddingModel == DefaultEmbeddingModel {
			c.EmbeddingModel = DefaultGeminiModel
		}
		// The Gemini SDK cannot shorten vectors, so the default length
		// follows the model
		if native, ok := geminiDimensions[c.EmbeddingModel]; ok && c.Dimensions == DefaultDimensions {
			c.Dimensions = native
		}
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
	case ProviderGemini:
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for gemini")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}

	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("ai config: Dimensions must be positive")
	}
	if c.BatchTokenBudget <= 0 {
		return errors.New("ai config: BatchTokenBudget must be positive")
	}
	if c.Concurrency < 1 {
		return errors.New("ai config: Concurrency must be at least 1")
	}
	if c.RateLimit < 0 {
		return errors.New("ai config: RateLimit must not be negative")
	}
	return nil
}
