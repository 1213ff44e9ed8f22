package ai

import "context"

// Embedder turns text into vectors of a fixed dimension. Implementations are
// shared by ingestion workers and concurrent retrievals.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts returns one vector per input, in input order. A failure on
	// any text fails the whole call.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider pairs an Embedder with the client resources behind it.
// Nothing obtained from a provider may be used after Close.
type AIProvider interface {
	Embedder() Embedder
	Close() error
}
