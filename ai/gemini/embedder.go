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


package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/groundwork/ai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// maxBatchRequests is the API limit on contents per BatchEmbedContents call.
const maxBatchRequests = 100

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("gemini circuit breaker open")

// backend is the raw API surface, replaced in tests.
type backend interface {
	embedQuery(ctx context.Context, text string) ([]float32, error)
	embedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	close() error
}

// Embedder implements ai.Embedder on the Gemini embeddings API.
type Embedder struct {
	backend backend
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(b backend, config *ai.Config) *Embedder {
	logger := slog.Default().With("component", "gemini-embedder")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini-embeddings",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(1, int(config.RateLimit)))
	}

	return &Embedder{backend: b, breaker: breaker, limiter: limiter, logger: logger}
}

// EmbedText embeds a query.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := e.call(ctx, func() (any, error) {
		return e.backend.embedQuery(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

// EmbedTexts embeds documents in chunks of at most 100 per request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchRequests {
		part := texts[start:min(start+maxBatchRequests, len(texts))]
		out, err := e.call(ctx, func() (any, error) {
			return e.backend.embedDocuments(ctx, part)
		})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, out.([][]float32)...)
	}
	return vectors, nil
}

// call waits for the limiter and runs fn through the breaker.
func (e *Embedder) call(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := e.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		e.logger.Error("embedding request failed", "err", err)
		return nil, ai.ProviderError(err)
	}
	return out, nil
}

// genaiBackend calls the API through the official SDK.
type genaiBackend struct {
	client   *genai.Client
	query    *genai.EmbeddingModel
	document *genai.EmbeddingModel
}

func (g *genaiBackend) embedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := g.query.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, errors.New("empty embedding response")
	}
	return res.Embedding.Values, nil
}

func (g *genaiBackend) embedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	batch := g.document.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	res, err := g.document.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb != nil {
			vectors[i] = emb.Values
		}
	}
	return vectors, nil
}

func (g *genaiBackend) close() error {
	return g.client.Close()
}
