package storage

import (
	"testing"
	"time"

	"github.com/poiesic/groundwork/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	id := core.IDFromContent("test content")
	decoded, err := UnmarshalID(MarshalID(id))
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	_, err = UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	chunk := &core.Chunk{
		Id:         core.ChunkID("r1", 7, "Photosynthesis converts light"),
		ResourceID: "r1",
		Seq:        7,
		Content:    "Photosynthesis converts light",
		Embedding:  []float32{0.25, -0.5, 1, 0},
		InsertedAt: now,
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestUnmarshalChunk_Truncated(t *testing.T) {
	chunk := &core.Chunk{
		Id:         1,
		ResourceID: "r1",
		Content:    "hello",
		Embedding:  []float32{1, 2, 3},
		InsertedAt: time.Now().UTC(),
	}
	data := MarshalChunk(chunk)

	for _, cut := range []int{0, 1, len(data) / 2, len(data) - 1} {
		_, err := UnmarshalChunk(data[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestMarshalUnmarshalCount(t *testing.T) {
	n, err := UnmarshalCount(MarshalCount(1234))
	require.NoError(t, err)
	assert.Equal(t, 1234, n)
}
