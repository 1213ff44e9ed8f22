package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/ai/mock"
	"github.com/poiesic/groundwork/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 2, RetryDelay: time.Millisecond}
}

func TestNewReembedder(t *testing.T) {
	repo := setupTestDB(t)
	embedder := mock.NewMockEmbedder(4)

	r, err := NewReembedder(repo, embedder, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)

	_, err = NewReembedder(nil, embedder, nil, nil)
	assert.Equal(t, ErrRepositoryRequired, err)

	_, err = NewReembedder(repo, nil, nil, nil)
	assert.Equal(t, ErrEmbedderRequired, err)

	_, err = NewReembedder(repo, embedder, &Config{MaxRetries: 0}, nil)
	assert.ErrorIs(t, err, ai.ErrInvalidMaxAttempts)
}

func TestReembedder_Run(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 4, map[core.ResourceID]int{"a": 3, "b": 2})

	embedder := mock.NewMockEmbedder(8)
	var out bytes.Buffer
	r, err := NewReembedder(repo, embedder, testConfig(), &out)
	require.NoError(t, err)

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Resources)
	assert.Equal(t, 5, summary.Chunks)

	for _, id := range []core.ResourceID{"a", "b"} {
		chunks, err := repo.GetChunksByResources(ctx, id)
		require.NoError(t, err)
		for _, c := range chunks {
			assert.Len(t, c.Embedding, 8)
		}
	}

	// a: 2+1, b: 2
	assert.Len(t, embedder.Batches(), 3)

	output := out.String()
	assert.Contains(t, output, "Starting reembedding of 5 chunks across 2 resources")
	assert.Contains(t, output, "5/5 chunks")
	assert.Contains(t, output, "Reembedding complete")
}

func TestReembedder_EmptyStore(t *testing.T) {
	repo := setupTestDB(t)
	var out bytes.Buffer
	r, err := NewReembedder(repo, mock.NewMockEmbedder(4), testConfig(), &out)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Chunks)
	assert.Contains(t, out.String(), "No chunks found")
}

func TestReembedder_EmbeddingError(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"a": 3})

	embedder := mock.NewMockEmbedder(4)
	boom := errors.New("quota exceeded")
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}

	r, err := NewReembedder(repo, embedder, testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "resource a")
}

func TestReembedder_ContextCancellation(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"a": 6})

	ctx, cancel := context.WithCancel(context.Background())
	embedder := mock.NewMockEmbedder(4)
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		cancel()
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0, 0, 0}
		}
		return out, nil
	}

	r, err := NewReembedder(repo, embedder, testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 100, config.ReportInterval)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryDelay)
}
