package storage

import (
	"context"

	"github.com/poiesic/groundwork/core"
)

// ChunkRepository stores embedded chunks grouped by their owning resource.
// Implementations must be thread-safe and support concurrent access.
type ChunkRepository interface {
	// AddChunks stores one or more chunks.
	// Chunks with ID=0 get a content-derived ID (core.ChunkID).
	// Sets InsertedAt if not already set.
	// Returns the chunks with IDs and timestamps populated.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunksByResources fetches every chunk of the given resources in one lookup.
	// Chunks are ordered by the position of their resource in ids, then by
	// ascending Seq (stored order). Unknown resources contribute nothing.
	GetChunksByResources(ctx context.Context, ids ...core.ResourceID) ([]*core.Chunk, error)

	// CountChunks returns the number of chunks stored for a resource.
	CountChunks(ctx context.Context, id core.ResourceID) (int, error)

	// UpdateEmbeddings replaces the embeddings of existing chunks.
	// Only the Embedding field is written.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateEmbeddings(ctx context.Context, chunks ...*core.Chunk) error

	// DeleteResource removes a resource and all of its chunks.
	// Returns ErrNotFound if the resource has no chunks.
	DeleteResource(ctx context.Context, id core.ResourceID) error

	// TrimResource removes the chunks of a resource with Seq >= keep. A
	// replacement writes its chunks over the old ones first and then trims
	// the leftovers. Trimming nothing is not an error.
	TrimResource(ctx context.Context, id core.ResourceID, keep int) error

	// ListResources returns the IDs of all resources with stored chunks.
	ListResources(ctx context.Context) ([]core.ResourceID, error)

	// Close releases resources held by the repository.
	Close() error
}
