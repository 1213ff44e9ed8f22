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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/groundwork/tokenizer"
)

// Batch is a half-open range [Start, End) of input texts sent in one request.
type Batch struct {
	Start, End int
	Tokens     int
}

// PlanBatches groups texts, in order, into the fewest consecutive batches
// whose token total stays within budget. A batch is flushed when adding the
// next text would exceed the budget; a single text larger than the budget
// forms a batch of its own.
func PlanBatches(texts []string, counter tokenizer.Counter, budget int) []Batch {
	var batches []Batch
	current := Batch{}
	for i, text := range texts {
		n := counter.Count(text)
		if current.End > current.Start && current.Tokens+n > budget {
			batches = append(batches, current)
			current = Batch{Start: i, End: i}
		}
		current.End = i + 1
		current.Tokens += n
	}
	if current.End > current.Start {
		batches = append(batches, current)
	}
	return batches
}

// BatchingEmbedder wraps an Embedder with token-budget batching, bounded
// fan-out and dimension checks. Provider failures come back wrapped in
// ErrEmbeddingProvider; vectors of the wrong length in ErrDimensionMismatch.
type BatchingEmbedder struct {
	inner      Embedder
	counter    tokenizer.Counter
	budget     int
	dimensions int
	pool       *ants.Pool
	logger     *slog.Logger
}

var _ Embedder = (*BatchingEmbedder)(nil)

// BatchOption configures a BatchingEmbedder.
type BatchOption func(*BatchingEmbedder) error

// WithCounter sets the token counter used to size batches.
func WithCounter(c tokenizer.Counter) BatchOption {
	return func(b *BatchingEmbedder) error {
		b.counter = c
		return nil
	}
}

// WithLogger sets a custom logger. If nil, uses slog.Default().
func WithLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchingEmbedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "batching-embedder")
		return nil
	}
}

// NewBatchingEmbedder wraps inner using the budget, dimensions and
// concurrency of config. Call Close to release the worker pool.
func NewBatchingEmbedder(inner Embedder, config *Config, opts ...BatchOption) (*BatchingEmbedder, error) {
	if inner == nil {
		return nil, ErrEmbedderRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(config.Concurrency)
	if err != nil {
		return nil, err
	}

	b := &BatchingEmbedder{
		inner:      inner,
		budget:     config.BatchTokenBudget,
		dimensions: config.Dimensions,
		pool:       pool,
		logger:     slog.Default().With("component", "batching-embedder"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			pool.Release()
			return nil, err
		}
	}
	if b.counter == nil {
		enc, err := tokenizer.Default()
		if err != nil {
			b.logger.Warn("falling back to approximate token counts", "error", err)
			b.counter = tokenizer.Approximate
		} else {
			b.counter = enc
		}
	}
	return b, nil
}

// Close releases the worker pool.
func (b *BatchingEmbedder) Close() {
	b.pool.Release()
}

// EmbedText embeds a single text, typically a query.
func (b *BatchingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := b.inner.EmbedText(ctx, prepare(text))
	if err != nil {
		return nil, ProviderError(err)
	}
	if err := CheckDimensions(b.dimensions, vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedTexts embeds texts in budget-sized batches. Batches run concurrently
// up to the configured concurrency; results keep input order.
func (b *BatchingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		prepared[i] = prepare(text)
	}
	batches := PlanBatches(prepared, b.counter, b.budget)
	b.logger.Debug("embedding texts", "texts", len(texts), "batches", len(batches))

	out := make([][]float32, len(texts))
	errs := make([]error, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			errs[i] = b.embedBatch(ctx, prepared, batch, out)
		}
		if err := b.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			b.logger.Error("batch failed", "batch", i, "size", batches[i].End-batches[i].Start, "err", err)
			return nil, err
		}
	}
	return out, nil
}

// embedBatch writes the vectors of one batch into its own range of out.
func (b *BatchingEmbedder) embedBatch(ctx context.Context, texts []string, batch Batch, out [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vectors, err := b.inner.EmbedTexts(ctx, texts[batch.Start:batch.End])
	if err != nil {
		return ProviderError(err)
	}
	if len(vectors) != batch.End-batch.Start {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingProvider, len(vectors), batch.End-batch.Start)
	}
	if err := CheckDimensions(b.dimensions, vectors...); err != nil {
		return err
	}
	copy(out[batch.Start:batch.End], vectors)
	return nil
}

func prepare(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}
