// Package postgres implements storage.ChunkRepository on PostgreSQL using bun.
// Embeddings are stored as double precision arrays; scoring happens in the
// retrieval engine, so no vector extension is required.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// chunkRow is the table model for stored chunks.
type chunkRow struct {
	bun.BaseModel `bun:"table:groundwork_chunks,alias:c"`

	ResourceID string    `bun:"resource_id,pk"`
	Seq        int       `bun:"seq,pk"`
	ChunkID    int64     `bun:"chunk_id,notnull"`
	Content    string    `bun:"content,notnull"`
	Embedding  []float64 `bun:"embedding,array"`
	InsertedAt time.Time `bun:"inserted_at,notnull"`
}

// ChunkRepository implements storage.ChunkRepository for PostgreSQL.
type ChunkRepository struct {
	db     *bun.DB
	logger *slog.Logger
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// Open connects to PostgreSQL using dsn and creates the schema if needed.
// With debug set, every query is logged through bundebug.
func Open(ctx context.Context, dsn string, debug bool) (storage.ChunkRepository, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	repo, err := NewChunkRepository(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewChunkRepository wraps an existing bun database and migrates the schema.
func NewChunkRepository(ctx context.Context, db *bun.DB) (*ChunkRepository, error) {
	if db == nil {
		return nil, errors.New("bun database required")
	}
	r := &ChunkRepository{
		db:     db,
		logger: slog.Default().With("component", "postgres-store"),
	}
	if err := r.migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ChunkRepository) migrate(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().Model((*chunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := r.db.NewCreateIndex().
		Model((*chunkRow)(nil)).
		Index("groundwork_chunks_resource_idx").
		Column("resource_id").
		IfNotExists().
		Exec(ctx)
	return err
}

// Close closes the database connection.
func (r *ChunkRepository) Close() error {
	return r.db.Close()
}

// AddChunks upserts one or more chunks keyed by (resource, seq).
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	rows := make([]chunkRow, len(chunks))
	for i, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		if chunk.Id == 0 {
			chunk.Id = core.ChunkID(chunk.ResourceID, chunk.Seq, chunk.Content)
		}
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = time.Now().UTC()
		}
		rows[i] = toRow(chunk)
	}

	_, err := r.db.NewInsert().
		Model(&rows).
		On("CONFLICT (resource_id, seq) DO UPDATE").
		Set("chunk_id = EXCLUDED.chunk_id").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunksByResources fetches every chunk of the given resources in one query.
func (r *ChunkRepository) GetChunksByResources(ctx context.Context, ids ...core.ResourceID) ([]*core.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}

	var rows []chunkRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("resource_id IN (?)", bun.In(keys)).
		Order("resource_id", "seq").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	// Reorder to follow the request
	byResource := make(map[core.ResourceID][]*core.Chunk)
	for i := range rows {
		chunk := fromRow(&rows[i])
		byResource[chunk.ResourceID] = append(byResource[chunk.ResourceID], chunk)
	}
	results := make([]*core.Chunk, 0, len(rows))
	for _, id := range ids {
		results = append(results, byResource[id]...)
		delete(byResource, id)
	}
	return results, nil
}

// CountChunks returns the number of chunks stored for a resource.
func (r *ChunkRepository) CountChunks(ctx context.Context, id core.ResourceID) (int, error) {
	return r.db.NewSelect().
		Model((*chunkRow)(nil)).
		Where("resource_id = ?", string(id)).
		Count(ctx)
}

// UpdateEmbeddings replaces the embeddings of existing chunks in one transaction.
func (r *ChunkRepository) UpdateEmbeddings(ctx context.Context, chunks ...*core.Chunk) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, chunk := range chunks {
			res, err := tx.NewUpdate().
				Model((*chunkRow)(nil)).
				Set("embedding = ?", pgdialect.Array(toFloat64(chunk.Embedding))).
				Where("resource_id = ?", string(chunk.ResourceID)).
				Where("seq = ?", chunk.Seq).
				Where("chunk_id = ?", int64(chunk.Id)).
				Exec(ctx)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return storage.ErrNotFound
			}
		}
		return nil
	})
}

// DeleteResource removes all chunks of a resource.
func (r *ChunkRepository) DeleteResource(ctx context.Context, id core.ResourceID) error {
	res, err := r.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("resource_id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TrimResource deletes the chunks of a resource from seq keep onward.
func (r *ChunkRepository) TrimResource(ctx context.Context, id core.ResourceID, keep int) error {
	_, err := r.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("resource_id = ?", string(id)).
		Where("seq >= ?", keep).
		Exec(ctx)
	return err
}

// ListResources returns the IDs of all resources with stored chunks.
func (r *ChunkRepository) ListResources(ctx context.Context) ([]core.ResourceID, error) {
	var keys []string
	err := r.db.NewSelect().
		Model((*chunkRow)(nil)).
		ColumnExpr("DISTINCT resource_id").
		Order("resource_id").
		Scan(ctx, &keys)
	if err != nil {
		return nil, err
	}
	ids := make([]core.ResourceID, len(keys))
	for i, k := range keys {
		ids[i] = core.ResourceID(k)
	}
	return ids, nil
}

func toRow(chunk *core.Chunk) chunkRow {
	return chunkRow{
		ResourceID: string(chunk.ResourceID),
		Seq:        chunk.Seq,
		ChunkID:    int64(chunk.Id),
		Content:    chunk.Content,
		Embedding:  toFloat64(chunk.Embedding),
		InsertedAt: chunk.InsertedAt,
	}
}

func fromRow(row *chunkRow) *core.Chunk {
	embedding := make([]float32, len(row.Embedding))
	for i, v := range row.Embedding {
		embedding[i] = float32(v)
	}
	return &core.Chunk{
		Id:         core.ID(row.ChunkID),
		ResourceID: core.ResourceID(row.ResourceID),
		Seq:        row.Seq,
		Content:    row.Content,
		Embedding:  embedding,
		InsertedAt: row.InsertedAt.UTC(),
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
