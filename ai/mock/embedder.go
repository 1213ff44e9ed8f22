package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// DefaultDimensions is the vector length used by NewMockProvider.
const DefaultDimensions = 8

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields and is safe for
// concurrent use.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	dim       int
	mu        sync.Mutex
	vectors   map[string][]float32
	callCount int
	batches   [][]string
}

// NewMockEmbedder creates a mock embedder producing vectors of length dim.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &MockEmbedder{dim: dim, vectors: make(map[string][]float32)}
}

// Dimensions returns the length of generated vectors.
func (m *MockEmbedder) Dimensions() int {
	return m.dim
}

// SetVector fixes the vector returned for text.
func (m *MockEmbedder) SetVector(text string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vector
}

// EmbedText returns the fixed vector for text or a hash-derived one.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.EmbedTextFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.vectorFor(text), nil
}

// EmbedTexts embeds each text like EmbedText and records the batch.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.callCount++
	m.batches = append(m.batches, append([]string(nil), texts...))
	fn := m.EmbedTextsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = m.vectorFor(text)
	}
	return embeddings, nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Batches returns the texts of every EmbedTexts call, in call order.
func (m *MockEmbedder) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}

// Reset clears the call count, recorded batches and injected functions.
// Fixed vectors are kept.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.batches = nil
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	m.mu.Lock()
	v, ok := m.vectors[text]
	m.mu.Unlock()
	if ok {
		return append([]float32(nil), v...)
	}
	return DeterministicVector(text, m.dim)
}

// DeterministicVector derives a unit vector from the FNV hash of text.
// The same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	var sumSquares float64
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000)/1000.0 + 0.001
		sumSquares += float64(vector[i]) * float64(vector[i])
	}

	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
