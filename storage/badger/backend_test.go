package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := OpenBackend(file, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	_, err = NewChunkRepository(backend)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestChunkRepository(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) (storage.ChunkRepository, func()) {
		repo, backend, err := NewMemoryRepository()
		require.NoError(t, err)
		return repo, func() {
			repo.Close()
			backend.Close()
		}
	})
}

func TestChunkRepository_LargeResourceSpansTransactions(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	chunks := storagetest.MakeChunks("big", addBatchSize*2+7, 8)
	_, err = repo.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	n, err := repo.CountChunks(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, len(chunks), n)

	got, err := repo.GetChunksByResources(ctx, "big")
	require.NoError(t, err)
	require.Len(t, got, len(chunks))
	for i, c := range got {
		assert.Equal(t, i, c.Seq)
	}
}

func TestChunkRepository_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	repo, err := NewChunkRepository(backend)
	require.NoError(t, err)
	_, err = repo.AddChunks(ctx, storagetest.MakeChunks("r1", 3, 4)...)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	repo, err = NewChunkRepository(backend)
	require.NoError(t, err)

	got, err := repo.GetChunksByResources(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCollectGarbage(t *testing.T) {
	t.Run("in memory is a no-op", func(t *testing.T) {
		backend, err := OpenBackend("", true)
		require.NoError(t, err)
		defer backend.Close()
		assert.NoError(t, backend.CollectGarbage(0.5))
	})

	t.Run("after delete", func(t *testing.T) {
		backend, err := OpenBackend(t.TempDir(), false)
		require.NoError(t, err)
		defer backend.Close()
		repo, err := NewChunkRepository(backend)
		require.NoError(t, err)

		ctx := context.Background()
		_, err = repo.AddChunks(ctx, storagetest.MakeChunks("r1", 20, 8)...)
		require.NoError(t, err)
		require.NoError(t, repo.DeleteResource(ctx, "r1"))

		assert.NoError(t, backend.CollectGarbage(0.5))
	})
}
