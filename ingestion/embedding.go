package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
)

// enricher fills derived chunk fields in place before chunks are stored.
type enricher interface {
	enrich(ctx context.Context, chunks ...*core.Chunk) error
}

// vectorizer attaches an embedding to every chunk of a document.
type vectorizer struct {
	embedder    ai.Embedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

var _ enricher = (*vectorizer)(nil)

func newVectorizer(embedder ai.Embedder, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) (*vectorizer, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if maxAttempts <= 0 {
		return nil, ai.ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &vectorizer{
		embedder:    embedder,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger.With("stage", "embed"),
	}, nil
}

// enrich embeds every chunk in one call, retrying with backoff.
func (v *vectorizer) enrich(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	v.logger.Debug("generating embeddings for chunks", "chunks", len(texts))
	var embeddings [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = v.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			v.logger.Warn("embedding attempt failed", "err", err)
		}
		return err
	}, v.maxAttempts, v.baseDelay)
	if err != nil {
		v.logger.Error("error generating embeddings", "err", err)
		return ai.ProviderError(err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d embeddings, received %d", ai.ErrEmbeddingProvider, len(chunks), len(embeddings))
	}

	for i := range embeddings {
		chunks[i].Embedding = embeddings[i]
	}
	return nil
}
