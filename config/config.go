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


// Package config loads groundwork settings from a YAML file and the
// environment. Environment variables override the file; a .env file, when
// present, fills in variables that are not already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/groundwork/ai"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when settings fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// StoreKind selects the chunk store implementation.
type StoreKind string

const (
	StoreBadger   StoreKind = "badger"
	StoreChromem  StoreKind = "chromem"
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory" // In-memory badger, lost on exit
)

// Token counters for prose chunking.
const (
	TokenizerTiktoken    = "tiktoken"
	TokenizerWords       = "words"
	TokenizerApproximate = "approximate"
)

// Config holds every setting of a groundwork process.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	AI        AIConfig        `yaml:"ai"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      HTTPConfig      `yaml:"http"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// AIConfig mirrors ai.Config.
type AIConfig struct {
	Provider         string  `yaml:"provider"`
	EmbeddingHost    string  `yaml:"embedding_host"`
	EmbeddingModel   string  `yaml:"embedding_model"`
	APIKey           string  `yaml:"api_key"`
	Dimensions       int     `yaml:"dimensions"`
	BatchTokenBudget int     `yaml:"batch_token_budget"`
	Concurrency      int     `yaml:"concurrency"`
	RateLimit        float64 `yaml:"rate_limit"`
}

// StoreConfig selects and locates the chunk store.
type StoreConfig struct {
	Kind  StoreKind `yaml:"kind"`
	Path  string    `yaml:"path"` // Directory for badger and chromem
	DSN   string    `yaml:"dsn"`  // Connection string for postgres
	Debug bool      `yaml:"debug"`
}

// CacheConfig enables the redis query-embedding cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
	Namespace string        `yaml:"namespace"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// IngestionConfig configures chunking and retries during ingestion.
type IngestionConfig struct {
	ChunkSize    int           `yaml:"chunk_size"`    // Tokens per prose chunk
	ChunkOverlap int           `yaml:"chunk_overlap"` // Tokens repeated between prose chunks
	RowsPerChunk int           `yaml:"rows_per_chunk"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	Workers      int           `yaml:"workers"`
	Tokenizer    string        `yaml:"tokenizer"` // tiktoken, words or approximate
}

// RetrievalConfig configures the retriever.
type RetrievalConfig struct {
	FallbackLadder bool `yaml:"fallback_ladder"`
}

// Default returns the built-in settings.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		LogLevel: "info",
		AI: AIConfig{
			Provider:         string(aiDefaults.Provider),
			EmbeddingHost:    aiDefaults.EmbeddingHost,
			EmbeddingModel:   aiDefaults.EmbeddingModel,
			Dimensions:       aiDefaults.Dimensions,
			BatchTokenBudget: aiDefaults.BatchTokenBudget,
			Concurrency:      aiDefaults.Concurrency,
		},
		Store: StoreConfig{
			Kind: StoreBadger,
			Path: "groundwork-data",
		},
		Cache: CacheConfig{
			TTL:       24 * time.Hour,
			Namespace: "default",
		},
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
		Ingestion: IngestionConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			RowsPerChunk: 20,
			MaxAttempts:  3,
			RetryDelay:   time.Second,
			Workers:      2,
			Tokenizer:    TokenizerTiktoken,
		},
		Retrieval: RetrievalConfig{
			FallbackLadder: true,
		},
	}
}

// Load reads settings from path (skipped when empty), then dotenv (skipped
// when empty or missing), then the process environment, then applies
// overrides in order, and validates the result.
func Load(path, dotenv string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if dotenv != "" {
		if _, err := os.Stat(dotenv); err == nil {
			if err := godotenv.Load(dotenv); err != nil {
				return nil, fmt.Errorf("error loading %s: %w", dotenv, err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables read through lookup.
// OPENAI_API_KEY and GEMINI_API_KEY fill in the API key of the matching
// provider when GROUNDWORK_API_KEY is unset.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	env.text("GROUNDWORK_LOG_LEVEL", &c.LogLevel)
	env.text("GROUNDWORK_PROVIDER", &c.AI.Provider)
	env.text("GROUNDWORK_EMBEDDING_HOST", &c.AI.EmbeddingHost)
	env.text("GROUNDWORK_EMBEDDING_MODEL", &c.AI.EmbeddingModel)
	env.text("GROUNDWORK_API_KEY", &c.AI.APIKey)
	env.integer("GROUNDWORK_DIMENSIONS", &c.AI.Dimensions)
	env.integer("GROUNDWORK_BATCH_TOKEN_BUDGET", &c.AI.BatchTokenBudget)
	env.integer("GROUNDWORK_CONCURRENCY", &c.AI.Concurrency)
	env.number("GROUNDWORK_RATE_LIMIT", &c.AI.RateLimit)

	var kind string
	if env.text("GROUNDWORK_STORE", &kind) {
		c.Store.Kind = StoreKind(kind)
	}
	env.text("GROUNDWORK_STORE_PATH", &c.Store.Path)
	env.text("GROUNDWORK_POSTGRES_DSN", &c.Store.DSN)
	env.flag("GROUNDWORK_STORE_DEBUG", &c.Store.Debug)

	env.text("GROUNDWORK_REDIS_ADDR", &c.Cache.RedisAddr)
	env.dur("GROUNDWORK_CACHE_TTL", &c.Cache.TTL)
	env.text("GROUNDWORK_CACHE_NAMESPACE", &c.Cache.Namespace)

	env.text("GROUNDWORK_LISTEN", &c.HTTP.Listen)

	env.integer("GROUNDWORK_CHUNK_SIZE", &c.Ingestion.ChunkSize)
	env.integer("GROUNDWORK_CHUNK_OVERLAP", &c.Ingestion.ChunkOverlap)
	env.integer("GROUNDWORK_ROWS_PER_CHUNK", &c.Ingestion.RowsPerChunk)
	env.text("GROUNDWORK_TOKENIZER", &c.Ingestion.Tokenizer)
	env.flag("GROUNDWORK_FALLBACK_LADDER", &c.Retrieval.FallbackLadder)

	if c.AI.APIKey == "" {
		switch ai.Provider(strings.ToLower(c.AI.Provider)) {
		case ai.ProviderOpenAI:
			env.text("OPENAI_API_KEY", &c.AI.APIKey)
		case ai.ProviderGemini:
			env.text("GEMINI_API_KEY", &c.AI.APIKey)
		}
	}

	return errors.Join(env.errs...)
}

// AIConfig converts the AI settings into a normalized ai.Config.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithProvider(ai.Provider(c.AI.Provider)),
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithDimensions(c.AI.Dimensions),
		ai.WithBatchTokenBudget(c.AI.BatchTokenBudget),
		ai.WithConcurrency(c.AI.Concurrency),
		ai.WithRateLimit(c.AI.RateLimit),
	)
	cfg.Normalize()
	return cfg
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Store.Kind {
	case StoreBadger, StoreChromem:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store path is required for %s", ErrInvalidConfig, c.Store.Kind)
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store dsn is required for postgres", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store.Kind)
	}

	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	}
	if c.Ingestion.ChunkSize <= 0 || c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than a positive chunk size", ErrInvalidConfig)
	}
	if c.Ingestion.RowsPerChunk <= 0 {
		return fmt.Errorf("%w: rows per chunk must be positive", ErrInvalidConfig)
	}
	if c.Ingestion.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive", ErrInvalidConfig)
	}
	switch c.Ingestion.Tokenizer {
	case TokenizerTiktoken, TokenizerWords, TokenizerApproximate:
	default:
		return fmt.Errorf("%w: unknown tokenizer %q", ErrInvalidConfig, c.Ingestion.Tokenizer)
	}
	return nil
}

// envReader collects parse errors while reading variables.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) text(key string, dst *string) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return false
	}
	*dst = v
	return true
}

func (e *envReader) integer(key string, dst *int) {
	var s string
	if !e.text(key, &s) {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
		return
	}
	*dst = n
}

func (e *envReader) number(key string, dst *float64) {
	var s string
	if !e.text(key, &s) {
		return
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
		return
	}
	*dst = f
}

func (e *envReader) flag(key string, dst *bool) {
	var s string
	if !e.text(key, &s) {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
		return
	}
	*dst = b
}

func (e *envReader) dur(key string, dst *time.Duration) {
	var s string
	if !e.text(key, &s) {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
		return
	}
	*dst = d
}
