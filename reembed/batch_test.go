package reembed

import (
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

func TestBatchProcessor_Process(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 4, map[core.ResourceID]int{"r1": 3})

	chunks, err := repo.GetChunksByResources(ctx, "r1")
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder(6)
	processor := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, processor.Process(ctx, chunks))

	stored, err := repo.GetChunksByResources(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, chunk := range stored {
		assert.Len(t, chunk.Embedding, 6, "new dimension written")
		assert.Equal(t, mock.DeterministicVector(chunk.Content, 6), chunk.Embedding)
		assert.Equal(t, chunks[i].Content, chunk.Content, "content untouched")
		assert.Equal(t, chunk.Embedding, chunks[i].Embedding, "caller's chunks updated")
	}
	assert.Equal(t, 1, embedder.CallCount())
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	repo := setupTestDB(t)
	embedder := mock.NewMockEmbedder(4)

	err := NewBatchProcessor(repo, embedder, 3, time.Millisecond).Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_Retry(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 4, map[core.ResourceID]int{"r1": 2})
	chunks, err := repo.GetChunksByResources(ctx, "r1")
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder(4)
	attempts := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("temporary failure")
		}
		return [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}, nil
	}

	require.NoError(t, NewBatchProcessor(repo, embedder, 3, time.Millisecond).Process(ctx, chunks))
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_EmbeddingError(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 4, map[core.ResourceID]int{"r1": 2})
	chunks, err := repo.GetChunksByResources(ctx, "r1")
	require.NoError(t, err)
	before := append([]float32(nil), chunks[0].Embedding...)

	embedder := mock.NewMockEmbedder(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}

	err = NewBatchProcessor(repo, embedder, 2, time.Millisecond).Process(ctx, chunks)
	assert.ErrorIs(t, err, ai.ErrEmbeddingProvider)
	assert.Equal(t, before, chunks[0].Embedding)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 4, map[core.ResourceID]int{"r1": 2})
	chunks, err := repo.GetChunksByResources(ctx, "r1")
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0, 0}}, nil
	}

	err = NewBatchProcessor(repo, embedder, 1, 0).Process(ctx, chunks)
	assert.ErrorIs(t, err, ai.ErrEmbeddingProvider)
}

func TestBatchProcessor_ContextCancellation(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"r1": 2})
	chunks, err := repo.GetChunksByResources(context.Background(), "r1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewBatchProcessor(repo, mock.NewMockEmbedder(4), 3, time.Second).Process(ctx, chunks)
	assert.ErrorIs(t, err, context.Canceled)
}
