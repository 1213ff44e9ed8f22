// Package chromem implements storage.ChunkRepository on the embedded
// chromem-go vector database. Each resource maps to one collection whose
// document IDs encode the chunk sequence.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

const (
	collectionPrefix = "resource:"
	metaChunkID      = "chunk_id"
	metaInsertedAt   = "inserted_at"
)

// ChunkRepository implements storage.ChunkRepository for chromem-go.
// chromem normalizes embeddings on insert; cosine scores are unaffected.
type ChunkRepository struct {
	db     *chromem.DB
	logger *slog.Logger
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository wraps an existing chromem database.
func NewChunkRepository(db *chromem.DB) (storage.ChunkRepository, error) {
	if db == nil {
		return nil, errors.New("chromem database required")
	}
	return &ChunkRepository{
		db:     db,
		logger: slog.Default().With("component", "chromem-store"),
	}, nil
}

// OpenPersistent opens (or creates) a persistent chromem database at path.
func OpenPersistent(path string) (storage.ChunkRepository, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, err
	}
	return NewChunkRepository(db)
}

// NewMemoryRepository creates an in-memory repository for testing.
func NewMemoryRepository() storage.ChunkRepository {
	repo, _ := NewChunkRepository(chromem.NewDB())
	return repo
}

// Close is a no-op; chromem persists on every write.
func (r *ChunkRepository) Close() error {
	return nil
}

// AddChunks stores one or more chunks.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	byResource := make(map[core.ResourceID][]chromem.Document)
	var order []core.ResourceID

	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		if chunk.Id == 0 {
			chunk.Id = core.ChunkID(chunk.ResourceID, chunk.Seq, chunk.Content)
		}
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = time.Now().UTC()
		}
		if _, ok := byResource[chunk.ResourceID]; !ok {
			order = append(order, chunk.ResourceID)
		}
		byResource[chunk.ResourceID] = append(byResource[chunk.ResourceID], toDocument(chunk))
	}

	for _, id := range order {
		col, err := r.db.GetOrCreateCollection(collectionName(id), nil, nil)
		if err != nil {
			return nil, err
		}
		if err := col.AddDocuments(ctx, byResource[id], runtime.NumCPU()); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// GetChunksByResources fetches every chunk of the given resources.
func (r *ChunkRepository) GetChunksByResources(ctx context.Context, ids ...core.ResourceID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	seen := make(map[core.ResourceID]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		col := r.db.GetCollection(collectionName(id), nil)
		if col == nil {
			continue
		}
		chunks, err := readAll(ctx, col, id)
		if err != nil {
			return nil, err
		}
		results = append(results, chunks...)
	}
	return results, nil
}

// CountChunks returns the number of chunks stored for a resource.
func (r *ChunkRepository) CountChunks(ctx context.Context, id core.ResourceID) (int, error) {
	col := r.db.GetCollection(collectionName(id), nil)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

// UpdateEmbeddings replaces the embeddings of existing chunks.
func (r *ChunkRepository) UpdateEmbeddings(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		col := r.db.GetCollection(collectionName(chunk.ResourceID), nil)
		if col == nil {
			return storage.ErrNotFound
		}
		doc, err := col.GetByID(ctx, documentID(chunk.Seq))
		if err != nil {
			return storage.ErrNotFound
		}
		if doc.Metadata[metaChunkID] != strconv.FormatUint(uint64(chunk.Id), 10) {
			return storage.ErrNotFound
		}
		doc.Embedding = chunk.Embedding
		if err := col.AddDocument(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// DeleteResource removes a resource's collection and therefore all of its chunks.
func (r *ChunkRepository) DeleteResource(ctx context.Context, id core.ResourceID) error {
	name := collectionName(id)
	if r.db.GetCollection(name, nil) == nil {
		return storage.ErrNotFound
	}
	return r.db.DeleteCollection(name)
}

// TrimResource deletes the documents whose sequence is keep or later.
func (r *ChunkRepository) TrimResource(ctx context.Context, id core.ResourceID, keep int) error {
	col := r.db.GetCollection(collectionName(id), nil)
	if col == nil {
		return nil
	}
	chunks, err := readAll(ctx, col, id)
	if err != nil {
		return err
	}
	var stale []string
	for _, chunk := range chunks {
		if chunk.Seq >= keep {
			stale = append(stale, documentID(chunk.Seq))
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if len(stale) == len(chunks) {
		return r.db.DeleteCollection(collectionName(id))
	}
	return col.Delete(ctx, nil, nil, stale...)
}

// ListResources returns the IDs of all resources with stored chunks.
func (r *ChunkRepository) ListResources(ctx context.Context) ([]core.ResourceID, error) {
	var ids []core.ResourceID
	for name, col := range r.db.ListCollections() {
		if !strings.HasPrefix(name, collectionPrefix) || col.Count() == 0 {
			continue
		}
		ids = append(ids, core.ResourceID(strings.TrimPrefix(name, collectionPrefix)))
	}
	return ids, nil
}

// readAll walks sequence numbers upward until every document of the
// collection has been found, which yields stored order.
func readAll(ctx context.Context, col *chromem.Collection, id core.ResourceID) ([]*core.Chunk, error) {
	total := col.Count()
	chunks := make([]*core.Chunk, 0, total)
	for seq := 0; len(chunks) < total; seq++ {
		if seq%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		doc, err := col.GetByID(ctx, documentID(seq))
		if err != nil {
			// Gap in the sequence
			continue
		}
		chunk, err := fromDocument(id, seq, doc)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func collectionName(id core.ResourceID) string {
	return collectionPrefix + string(id)
}

// documentID zero-pads the sequence so IDs also sort lexicographically.
func documentID(seq int) string {
	return fmt.Sprintf("%010d", seq)
}

func toDocument(chunk *core.Chunk) chromem.Document {
	return chromem.Document{
		ID: documentID(chunk.Seq),
		Metadata: map[string]string{
			metaChunkID:    strconv.FormatUint(uint64(chunk.Id), 10),
			metaInsertedAt: strconv.FormatInt(chunk.InsertedAt.UnixMicro(), 10),
		},
		Embedding: chunk.Embedding,
		Content:   chunk.Content,
	}
}

func fromDocument(id core.ResourceID, seq int, doc chromem.Document) (*core.Chunk, error) {
	chunkID, err := strconv.ParseUint(doc.Metadata[metaChunkID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk id: %w", storage.ErrSerializationFailed, err)
	}
	micros, err := strconv.ParseInt(doc.Metadata[metaInsertedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: inserted at: %w", storage.ErrSerializationFailed, err)
	}
	return &core.Chunk{
		Id:         core.ID(chunkID),
		ResourceID: id,
		Seq:        seq,
		Content:    doc.Content,
		Embedding:  doc.Embedding,
		InsertedAt: time.UnixMicro(micros).UTC(),
	}, nil
}
