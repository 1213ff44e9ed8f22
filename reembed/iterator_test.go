package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/badger"
	"github.com/poiesic/groundwork/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) storage.ChunkRepository {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

// seed stores n chunks with dim-sized embeddings for each resource.
func seed(t *testing.T, repo storage.ChunkRepository, dim int, counts map[core.ResourceID]int) {
	t.Helper()
	for id, n := range counts {
		_, err := repo.AddChunks(context.Background(), storagetest.MakeChunks(id, n, dim)...)
		require.NoError(t, err)
	}
}

func TestChunkIterator_BatchSizes(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"a": 5, "b": 2})

	tests := []struct {
		batchSize int
		want      map[core.ResourceID][]int
	}{
		{2, map[core.ResourceID][]int{"a": {2, 2, 1}, "b": {2}}},
		{5, map[core.ResourceID][]int{"a": {5}, "b": {2}}},
		{100, map[core.ResourceID][]int{"a": {5}, "b": {2}}},
		{0, map[core.ResourceID][]int{"a": {5}, "b": {2}}},
	}

	for _, tc := range tests {
		it := NewChunkIterator(repo, tc.batchSize)
		got := make(map[core.ResourceID][]int)
		err := it.ForEach(context.Background(), func(id core.ResourceID, chunks []*core.Chunk) error {
			for _, c := range chunks {
				assert.Equal(t, id, c.ResourceID, "batches never span resources")
			}
			got[id] = append(got[id], len(chunks))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "batch size %d", tc.batchSize)
	}
}

func TestChunkIterator_StoredOrder(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"a": 7})

	var seqs []int
	err := NewChunkIterator(repo, 3).ForEach(context.Background(), func(_ core.ResourceID, chunks []*core.Chunk) error {
		for _, c := range chunks {
			seqs = append(seqs, c.Seq)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, seqs)
}

func TestChunkIterator_EmptyStore(t *testing.T) {
	repo := setupTestDB(t)
	called := false
	err := NewChunkIterator(repo, 10).ForEach(context.Background(), func(core.ResourceID, []*core.Chunk) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)

	resources, chunks, err := NewChunkIterator(repo, 10).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, resources)
	assert.Zero(t, chunks)
}

func TestChunkIterator_ErrorStopsIteration(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"a": 6})

	boom := errors.New("stop")
	calls := 0
	err := NewChunkIterator(repo, 2).ForEach(context.Background(), func(core.ResourceID, []*core.Chunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_ContextCancellation(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"a": 6})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewChunkIterator(repo, 2).ForEach(ctx, func(core.ResourceID, []*core.Chunk) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_Count(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 4, map[core.ResourceID]int{"a": 6, "b": 3, "c": 1})

	resources, chunks, err := NewChunkIterator(repo, 2).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, resources)
	assert.Equal(t, 10, chunks)
}
