// Package storagetest provides a behavioural test suite shared by every
// storage.ChunkRepository implementation.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates an empty repository and returns a cleanup function.
type Factory func(t *testing.T) (storage.ChunkRepository, func())

// MakeChunks builds n chunks for a resource with one-hot-ish embeddings of dimension dim.
func MakeChunks(id core.ResourceID, n, dim int) []*core.Chunk {
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		chunks[i] = &core.Chunk{
			ResourceID: id,
			Seq:        i,
			Content:    fmt.Sprintf("%s chunk %d", id, i),
			Embedding:  vec,
		}
	}
	return chunks
}

// Run executes the suite against repositories produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("add assigns ids and timestamps", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		added, err := repo.AddChunks(ctx, MakeChunks("r1", 3, 4)...)
		require.NoError(t, err)
		require.Len(t, added, 3)
		for _, c := range added {
			assert.NotZero(t, c.Id)
			assert.False(t, c.InsertedAt.IsZero())
		}
	})

	t.Run("add rejects invalid chunks", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		_, err := repo.AddChunks(ctx, &core.Chunk{ResourceID: "r1", Content: "no vector"})
		assert.ErrorIs(t, err, core.ErrInvalidChunk)

		_, err = repo.AddChunks(ctx, MakeChunks("r1\x00shadow", 1, 4)...)
		assert.ErrorIs(t, err, core.ErrResourceIDNUL)
		got, err := repo.GetChunksByResources(ctx, "r1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("fetch returns stored order grouped by request order", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		// Insert out of order to make sure the store orders by Seq
		a := MakeChunks("a", 12, 4)
		b := MakeChunks("b", 2, 4)
		_, err := repo.AddChunks(ctx, a[5:]...)
		require.NoError(t, err)
		_, err = repo.AddChunks(ctx, b...)
		require.NoError(t, err)
		_, err = repo.AddChunks(ctx, a[:5]...)
		require.NoError(t, err)

		got, err := repo.GetChunksByResources(ctx, "b", "a", "missing")
		require.NoError(t, err)
		require.Len(t, got, 14)

		assert.Equal(t, core.ResourceID("b"), got[0].ResourceID)
		assert.Equal(t, core.ResourceID("b"), got[1].ResourceID)
		for i, c := range got[2:] {
			assert.Equal(t, core.ResourceID("a"), c.ResourceID)
			assert.Equal(t, i, c.Seq)
			assert.Equal(t, fmt.Sprintf("a chunk %d", i), c.Content)
		}
	})

	t.Run("fetch preserves embeddings", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		chunk := &core.Chunk{ResourceID: "r1", Content: "x", Embedding: []float32{0.6, 0.8}}
		_, err := repo.AddChunks(ctx, chunk)
		require.NoError(t, err)

		got, err := repo.GetChunksByResources(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDeltaSlice(t, []float32{0.6, 0.8}, got[0].Embedding, 1e-6)
		assert.Equal(t, chunk.Id, got[0].Id)
	})

	t.Run("duplicate ids are fetched once", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		_, err := repo.AddChunks(ctx, MakeChunks("r1", 2, 4)...)
		require.NoError(t, err)

		got, err := repo.GetChunksByResources(ctx, "r1", "r1")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("count and list resources", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		_, err := repo.AddChunks(ctx, MakeChunks("r1", 3, 4)...)
		require.NoError(t, err)
		_, err = repo.AddChunks(ctx, MakeChunks("r2", 1, 4)...)
		require.NoError(t, err)
		// Re-adding the same positions must not inflate the count
		_, err = repo.AddChunks(ctx, MakeChunks("r1", 3, 4)...)
		require.NoError(t, err)

		n, err := repo.CountChunks(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = repo.CountChunks(ctx, "nope")
		require.NoError(t, err)
		assert.Zero(t, n)

		ids, err := repo.ListResources(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []core.ResourceID{"r1", "r2"}, ids)
	})

	t.Run("delete cascades to chunks", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		_, err := repo.AddChunks(ctx, MakeChunks("r1", 4, 4)...)
		require.NoError(t, err)
		_, err = repo.AddChunks(ctx, MakeChunks("r2", 2, 4)...)
		require.NoError(t, err)

		require.NoError(t, repo.DeleteResource(ctx, "r1"))

		got, err := repo.GetChunksByResources(ctx, "r1", "r2")
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, c := range got {
			assert.Equal(t, core.ResourceID("r2"), c.ResourceID)
		}

		ids, err := repo.ListResources(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.ResourceID{"r2"}, ids)

		assert.ErrorIs(t, repo.DeleteResource(ctx, "r1"), storage.ErrNotFound)
	})

	t.Run("update embeddings", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		added, err := repo.AddChunks(ctx, MakeChunks("r1", 2, 4)...)
		require.NoError(t, err)

		added[1].Embedding = []float32{0, 0, 0.6, 0.8}
		require.NoError(t, repo.UpdateEmbeddings(ctx, added[1]))

		got, err := repo.GetChunksByResources(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.InDeltaSlice(t, []float32{0, 0, 0.6, 0.8}, got[1].Embedding, 1e-6)
		assert.Equal(t, "r1 chunk 1", got[1].Content)

		missing := &core.Chunk{Id: 99, ResourceID: "r1", Seq: 50, Content: "x", Embedding: []float32{1}}
		assert.ErrorIs(t, repo.UpdateEmbeddings(ctx, missing), storage.ErrNotFound)
	})

	t.Run("overwrite then trim replaces a resource", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		_, err := repo.AddChunks(ctx, MakeChunks("r1", 5, 4)...)
		require.NoError(t, err)

		next := MakeChunks("r1", 2, 4)
		next[0].Content, next[1].Content = "fresh 0", "fresh 1"
		_, err = repo.AddChunks(ctx, next...)
		require.NoError(t, err)

		n, err := repo.CountChunks(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, 5, n, "overwrites do not add chunks")

		require.NoError(t, repo.TrimResource(ctx, "r1", 2))
		got, err := repo.GetChunksByResources(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "fresh 0", got[0].Content)
		assert.Equal(t, "fresh 1", got[1].Content)

		n, err = repo.CountChunks(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("trim edge cases", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		defer cleanup()

		assert.NoError(t, repo.TrimResource(ctx, "missing", 0))

		_, err := repo.AddChunks(ctx, MakeChunks("r1", 3, 4)...)
		require.NoError(t, err)
		require.NoError(t, repo.TrimResource(ctx, "r1", 10))
		n, err := repo.CountChunks(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		require.NoError(t, repo.TrimResource(ctx, "r1", 0))
		ids, err := repo.ListResources(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}
