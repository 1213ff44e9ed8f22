package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The suite needs a live database; set GROUNDWORK_TEST_POSTGRES_DSN to run it.
func TestChunkRepository(t *testing.T) {
	dsn := os.Getenv("GROUNDWORK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GROUNDWORK_TEST_POSTGRES_DSN not set")
	}

	storagetest.Run(t, func(t *testing.T) (storage.ChunkRepository, func()) {
		ctx := context.Background()
		repo, err := Open(ctx, dsn, false)
		require.NoError(t, err)
		pg := repo.(*ChunkRepository)
		_, err = pg.db.NewTruncateTable().Model((*chunkRow)(nil)).Exec(ctx)
		require.NoError(t, err)
		return repo, func() { repo.Close() }
	})
}

func TestRowConversion(t *testing.T) {
	chunk := &core.Chunk{
		Id:         core.ID(1<<63 + 5),
		ResourceID: "r1",
		Seq:        4,
		Content:    "hello",
		Embedding:  []float32{0.5, -0.25},
	}

	row := toRow(chunk)
	back := fromRow(&row)

	assert.Equal(t, chunk.Id, back.Id, "uint64 ids survive the signed column")
	assert.Equal(t, chunk.ResourceID, back.ResourceID)
	assert.Equal(t, chunk.Seq, back.Seq)
	assert.Equal(t, chunk.Embedding, back.Embedding)
}
