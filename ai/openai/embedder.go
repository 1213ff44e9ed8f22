package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/groundwork/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxInputsPerRequest is the OpenAI limit on inputs in one embeddings call.
const maxInputsPerRequest = 2048

// Embedder sends texts straight to the endpoint with no token budgeting.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config, extra ...openai.Option) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Local OpenAI-compatible servers accept any token
	token := config.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	}
	// Only the text-embedding-3 family can shorten its output
	if strings.HasPrefix(config.EmbeddingModel, "text-embedding-3") {
		opts = append(opts, openai.WithEmbeddingDimensions(config.Dimensions))
	}
	client, err := openai.New(append(opts, extra...)...)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(maxInputsPerRequest),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder returns the raw client embedder. Most callers want
// NewProvider, whose embedder splits oversized batches.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("embedding question", "runes", len([]rune(text)))

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("question embedding failed", "err", err)
		return nil, ai.ProviderError(err)
	}
	return vector, nil
}

// EmbedTexts embeds texts in order; langchaingo splits the request when it
// exceeds the per-call input limit.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding chunks", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("chunk embedding failed", "count", len(texts), "err", err)
		return nil, ai.ProviderError(err)
	}
	return vectors, nil
}
