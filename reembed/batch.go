package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

// BatchProcessor re-embeds batches of chunks and writes the new vectors back.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the chunks' content and replaces their stored embeddings.
// The chunks are updated in place only after the store accepted them.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, ai.ProviderError(err))
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d embeddings, got %d", ai.ErrEmbeddingProvider, len(chunks), len(embeddings))
	}

	updated := make([]*core.Chunk, len(chunks))
	for i, chunk := range chunks {
		c := *chunk
		c.Embedding = embeddings[i]
		updated[i] = &c
	}

	if err := bp.repo.UpdateEmbeddings(ctx, updated...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}
	for i, chunk := range chunks {
		chunk.Embedding = updated[i].Embedding
	}
	return nil
}
