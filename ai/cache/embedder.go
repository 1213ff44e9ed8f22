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


// Package cache memoizes query embeddings in Redis. Repeated questions
// then skip the embedding provider entirely.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached vector lives.
const DefaultTTL = 24 * time.Hour

// CachingEmbedder wraps an ai.Embedder and caches EmbedText results.
// EmbedTexts passes straight through: document chunks are embedded once
// at ingestion and stored, so caching them only costs memory.
// Cache failures are logged and fall back to the inner embedder.
type CachingEmbedder struct {
	inner      ai.Embedder
	client     redis.UniversalClient
	namespace  string
	model      string
	dimensions int
	ttl        time.Duration
	logger     *slog.Logger
}

var _ ai.Embedder = (*CachingEmbedder)(nil)

// Option configures a CachingEmbedder.
type Option func(*CachingEmbedder) error

// WithTTL sets the lifetime of cached vectors. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *CachingEmbedder) error {
		if ttl < 0 {
			return errors.New("ttl must not be negative")
		}
		c.ttl = ttl
		return nil
	}
}

// WithNamespace scopes keys per deployment sharing one Redis.
func WithNamespace(ns string) Option {
	return func(c *CachingEmbedder) error {
		if ns == "" {
			ns = "default"
		}
		c.namespace = ns
		return nil
	}
}

// WithModel folds the provider, model and vector size into every key, so a
// model change never serves the old model's vectors. With dimensions set, a
// cached vector of any other length counts as a miss.
func WithModel(provider, model string, dimensions int) Option {
	return func(c *CachingEmbedder) error {
		if dimensions < 0 {
			return errors.New("dimensions must not be negative")
		}
		c.model = provider + "/" + model
		c.dimensions = dimensions
		return nil
	}
}

// WithLogger sets a custom logger. If nil, uses slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *CachingEmbedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding-cache")
		return nil
	}
}

// NewCachingEmbedder wraps inner with a Redis-backed query cache.
func NewCachingEmbedder(inner ai.Embedder, client redis.UniversalClient, opts ...Option) (*CachingEmbedder, error) {
	if inner == nil {
		return nil, ai.ErrEmbedderRequired
	}
	if client == nil {
		return nil, errors.New("redis client required")
	}
	c := &CachingEmbedder{
		inner:     inner,
		client:    client,
		namespace: "default",
		model:     "unknown",
		ttl:       DefaultTTL,
		logger:    slog.Default().With("component", "embedding-cache"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Connect parses a redis:// URL or a host:port address and pings the server.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if len(addr) > 8 && (addr[:8] == "redis://" || addr[:9] == "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// EmbedText returns the cached vector for text or embeds and caches it.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		vector, decodeErr := decodeVector(data)
		switch {
		case decodeErr != nil:
			c.logger.Warn("discarding corrupt cache entry", "key", key)
		case c.dimensions > 0 && len(vector) != c.dimensions:
			c.logger.Warn("discarding cache entry of wrong size", "key", key, "got", len(vector), "want", c.dimensions)
		default:
			c.logger.Debug("query embedding cache hit")
			return vector, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", "err", err)
	}

	vector, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encodeVector(vector), c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "err", err)
	}
	return vector, nil
}

// EmbedTexts delegates to the inner embedder.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedTexts(ctx, texts)
}

// key is groundwork:qemb:<namespace>:<provider/model>:<dims>:<hash>.
func (c *CachingEmbedder) key(text string) string {
	return fmt.Sprintf("groundwork:qemb:%s:%s:%d:%016x",
		c.namespace, c.model, c.dimensions, uint64(core.IDFromContent(text)))
}

func encodeVector(v []float32) []byte {
	size := varint.Int.Size(len(v))
	for _, x := range v {
		size += raw.Float32.Size(x)
	}
	buf := make([]byte, size)
	n := varint.Int.Marshal(len(v), buf)
	for _, x := range v {
		n += raw.Float32.Marshal(x, buf[n:])
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	length, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if length < 0 || length*4 != len(data)-n {
		return nil, fmt.Errorf("bad vector length %d", length)
	}
	v := make([]float32, length)
	for i := range v {
		x, m, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, err
		}
		v[i] = x
		n += m
	}
	return v, nil
}
