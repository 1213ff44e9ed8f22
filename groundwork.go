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


// Package groundwork wires a chunk store, an embedding provider and the
// retrieval engine into one Engine built from a config.Config.
package groundwork

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/ai/cache"
	"github.com/poiesic/groundwork/ai/gemini"
	"github.com/poiesic/groundwork/ai/mock"
	"github.com/poiesic/groundwork/ai/openai"
	"github.com/poiesic/groundwork/chunking"
	"github.com/poiesic/groundwork/config"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/reembed"
	"github.com/poiesic/groundwork/retrieval"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/badger"
	"github.com/poiesic/groundwork/storage/chromem"
	"github.com/poiesic/groundwork/storage/postgres"
	"github.com/poiesic/groundwork/tokenizer"
	"github.com/redis/go-redis/v9"
)

// Engine owns the store, the embedding provider and the retriever.
type Engine struct {
	config    *config.Config
	backend   *badger.Backend
	repo      storage.ChunkRepository
	provider  ai.AIProvider
	redis     redis.UniversalClient
	retriever *retrieval.Retriever
	counter   tokenizer.Counter
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	repository    storage.ChunkRepository
	provider      ai.AIProvider
	redis         redis.UniversalClient
	retrievalOpts []retrieval.Option
	counter       tokenizer.Counter
	logger        *slog.Logger
}

// WithRepository uses repo instead of opening the configured store.
// The engine closes it on Close.
func WithRepository(repo storage.ChunkRepository) EngineOption {
	return func(o *engineOptions) {
		o.repository = repo
	}
}

// WithProvider uses provider instead of building the configured one.
// The engine closes it on Close.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithRedis caches query embeddings in client instead of connecting to the
// configured address. The engine closes it on Close.
func WithRedis(client redis.UniversalClient) EngineOption {
	return func(o *engineOptions) {
		o.redis = client
	}
}

// WithRetrievalOptions passes extra options to the retriever. They are
// applied after the configured ones.
func WithRetrievalOptions(opts ...retrieval.Option) EngineOption {
	return func(o *engineOptions) {
		o.retrievalOpts = append(o.retrievalOpts, opts...)
	}
}

// WithTokenCounter measures prose chunks with counter instead of the
// default tiktoken encoding.
func WithTokenCounter(counter tokenizer.Counter) EngineOption {
	return func(o *engineOptions) {
		o.counter = counter
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open builds an Engine from cfg. A nil cfg uses config.Default().
func Open(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default().With("component", "engine")
	}

	e := &Engine{
		config:  cfg,
		counter: options.counter,
		logger:  options.logger,
	}
	if e.counter == nil {
		e.counter = counterFor(cfg.Ingestion.Tokenizer)
	}

	// Open the chunk store
	e.repo = options.repository
	if e.repo == nil {
		if err := e.openStore(ctx); err != nil {
			return nil, err
		}
	}

	// Create the embedding provider with configured settings
	e.provider = options.provider
	if e.provider == nil {
		provider, err := newProvider(ctx, cfg.AIConfig())
		if err != nil {
			e.Close()
			return nil, err
		}
		e.provider = provider
	}

	// Queries go through the redis cache when one is configured
	queryEmbedder := e.provider.Embedder()
	e.redis = options.redis
	if e.redis == nil && cfg.Cache.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("query cache: %w", err)
		}
		e.redis = client
	}
	if e.redis != nil {
		cached, err := cache.NewCachingEmbedder(queryEmbedder, e.redis,
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithNamespace(cfg.Cache.Namespace),
			cache.WithModel(cfg.AI.Provider, cfg.AI.EmbeddingModel, cfg.AI.Dimensions))
		if err != nil {
			e.Close()
			return nil, err
		}
		queryEmbedder = cached
	}

	retrievalOpts := append([]retrieval.Option{
		retrieval.WithFallbackLadder(cfg.Retrieval.FallbackLadder),
	}, options.retrievalOpts...)
	retriever, err := retrieval.NewRetriever(e.repo, queryEmbedder, retrievalOpts...)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.retriever = retriever

	return e, nil
}

func (e *Engine) openStore(ctx context.Context) error {
	store := e.config.Store
	switch store.Kind {
	case config.StoreBadger, config.StoreMemory:
		backend, err := badger.OpenBackend(store.Path, store.Kind == config.StoreMemory)
		if err != nil {
			return err
		}
		repo, err := badger.NewChunkRepository(backend)
		if err != nil {
			backend.Close()
			return err
		}
		e.backend, e.repo = backend, repo
	case config.StoreChromem:
		repo, err := chromem.OpenPersistent(store.Path)
		if err != nil {
			return err
		}
		e.repo = repo
	case config.StorePostgres:
		repo, err := postgres.Open(ctx, store.DSN, store.Debug)
		if err != nil {
			return err
		}
		e.repo = repo
	default:
		return fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, store.Kind)
	}
	return nil
}

// counterFor returns nil for tiktoken, which the token chunker loads itself.
func counterFor(name string) tokenizer.Counter {
	switch name {
	case config.TokenizerWords:
		return tokenizer.Words
	case config.TokenizerApproximate:
		return tokenizer.Approximate
	default:
		return nil
	}
}

func newProvider(ctx context.Context, cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderGemini:
		return gemini.NewProvider(ctx, cfg)
	case ai.ProviderMock:
		return mock.NewMockProvider(cfg.Dimensions), nil
	default:
		return openai.NewProvider(cfg)
	}
}

// Close releases the provider, the cache client and the store.
func (e *Engine) Close() error {
	var errs []error

	// Close AI provider first
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Error("error closing redis client", "err", err)
			errs = append(errs, err)
		}
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Error("error closing chunk repository", "err", err)
			errs = append(errs, err)
		}
	}

	// Close backend
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Repository returns the chunk store.
func (e *Engine) Repository() storage.ChunkRepository {
	return e.repo
}

// Embedder returns the document embedder.
func (e *Engine) Embedder() ai.Embedder {
	return e.provider.Embedder()
}

// Retriever returns the configured retriever.
func (e *Engine) Retriever() *retrieval.Retriever {
	return e.retriever
}

// Retrieve runs a retrieval against the selected resources.
func (e *Engine) Retrieve(ctx context.Context, question string, resources []core.Resource) ([]*core.ComparisonResult, error) {
	return e.retriever.Retrieve(ctx, question, resources)
}

// RetrieveResponse runs a retrieval and wraps the outcome in a response
// envelope. The error is returned alongside the error envelope so callers
// can classify it.
func (e *Engine) RetrieveResponse(ctx context.Context, question string, resources []core.Resource) (*retrieval.Response, error) {
	results, err := e.retriever.Retrieve(ctx, question, resources)
	if err != nil {
		e.logger.Error("error retrieving information", "err", err)
		return retrieval.ErrorResponse(question, resources, err), err
	}
	return retrieval.BuildResponse(question, resources, results), nil
}

// DeleteResource removes a resource and all of its chunks.
func (e *Engine) DeleteResource(ctx context.Context, id core.ResourceID) error {
	return e.repo.DeleteResource(ctx, id)
}

// Compact reclaims space left behind by deleted resources and replaced
// embeddings. Only the badger store holds reclaimable space.
func (e *Engine) Compact() error {
	if e.backend == nil {
		return nil
	}
	return e.backend.CollectGarbage(0.5)
}

// ListResources returns the IDs of all stored resources.
func (e *Engine) ListResources(ctx context.Context) ([]core.ResourceID, error) {
	return e.repo.ListResources(ctx)
}

// NewIngestionPipeline creates a pipeline using the configured chunk sizes
// and retry policy. Options are applied after the configured ones.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	settings := e.config.Ingestion
	chunkOpts := []chunking.Option{
		chunking.WithSize(settings.ChunkSize),
		chunking.WithOverlap(settings.ChunkOverlap),
	}
	if e.counter != nil {
		chunkOpts = append(chunkOpts, chunking.WithCounter(e.counter))
	}
	prose, err := chunking.NewTokenChunker(chunkOpts...)
	if err != nil {
		return nil, err
	}
	rows, err := chunking.NewRowChunker(chunking.WithSize(settings.RowsPerChunk))
	if err != nil {
		return nil, err
	}

	base := []ingestion.Option{
		ingestion.WithProseChunker(prose),
		ingestion.WithRowChunker(rows),
		ingestion.WithRetry(settings.MaxAttempts, settings.RetryDelay),
		ingestion.WithPoolSize(settings.Workers),
	}
	return ingestion.NewPipeline(e.repo, e.provider.Embedder(), append(base, opts...)...)
}

// NewReembedder creates a reembedder for every stored chunk.
// progress receives human-readable progress; nil discards it.
func (e *Engine) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(e.repo, e.provider.Embedder(), config, progress)
}
