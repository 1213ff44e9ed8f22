package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

// addBatchSize bounds the number of chunks written per transaction so large
// resources stay under badger's transaction size limit.
const addBatchSize = 256

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("badger backend required")
	}
	if backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	return &ChunkRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *ChunkRepository) Close() error {
	return nil
}

// AddChunks stores one or more chunks.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	for start := 0; start < len(chunks); start += addBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+addBatchSize, len(chunks))
		if err := r.addBatch(chunks[start:end]); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

func (r *ChunkRepository) addBatch(chunks []*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		added := make(map[core.ResourceID]int)
		for _, chunk := range chunks {
			if chunk.Id == 0 {
				chunk.Id = core.ChunkID(chunk.ResourceID, chunk.Seq, chunk.Content)
			}
			if chunk.InsertedAt.IsZero() {
				chunk.InsertedAt = time.Now().UTC()
			}

			key := makeChunkKey(chunk.ResourceID, chunk.Seq)
			_, err := tx.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				added[chunk.ResourceID]++
			case err != nil:
				return err
			}

			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}

		// Maintain per-resource chunk counts
		for id, n := range added {
			count, err := readCount(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Set(makeResourceKey(id), storage.MarshalCount(count+n)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunksByResources fetches every chunk of the given resources in one read transaction.
func (r *ChunkRepository) GetChunksByResources(ctx context.Context, ids ...core.ResourceID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	seen := make(map[core.ResourceID]bool, len(ids))

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := ctx.Err(); err != nil {
				return err
			}

			opts := badger.DefaultIteratorOptions
			opts.Prefix = makeResourceChunkPrefix(id)
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				var chunk *core.Chunk
				err := iter.Item().Value(func(val []byte) error {
					var err error
					chunk, err = storage.UnmarshalChunk(val)
					return err
				})
				if err != nil {
					iter.Close()
					return err
				}
				results = append(results, chunk)
			}
			iter.Close()
		}
		return nil
	}, false)

	return results, err
}

// CountChunks returns the number of chunks stored for a resource.
func (r *ChunkRepository) CountChunks(ctx context.Context, id core.ResourceID) (int, error) {
	var count int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		count, err = readCount(tx, id)
		return err
	}, false)
	return count, err
}

// UpdateEmbeddings replaces the embeddings of existing chunks.
func (r *ChunkRepository) UpdateEmbeddings(ctx context.Context, chunks ...*core.Chunk) error {
	for start := 0; start < len(chunks); start += addBatchSize {
		end := min(start+addBatchSize, len(chunks))
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, chunk := range chunks[start:end] {
				key := makeChunkKey(chunk.ResourceID, chunk.Seq)
				stored, err := readChunk(tx, key)
				if err != nil {
					return err
				}
				if stored == nil || stored.Id != chunk.Id {
					return storage.ErrNotFound
				}
				stored.Embedding = chunk.Embedding
				if err := tx.Set(key, storage.MarshalChunk(stored)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteResource removes a resource and all of its chunks.
func (r *ChunkRepository) DeleteResource(ctx context.Context, id core.ResourceID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := tx.Get(makeResourceKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeResourceChunkPrefix(id)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeResourceKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// TrimResource deletes chunks from seq keep onward and rewrites the count.
// Trimming to zero removes the resource marker as well.
func (r *ChunkRepository) TrimResource(ctx context.Context, id core.ResourceID, keep int) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		count, err := readCount(tx, id)
		if err != nil || count == 0 {
			return err
		}

		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeResourceChunkPrefix(id)
		iter := tx.NewIterator(opts)
		for iter.Seek(makeChunkKey(id, max(keep, 0))); iter.Valid(); iter.Next() {
			stale = append(stale, iter.Item().KeyCopy(nil))
		}
		iter.Close()
		if len(stale) == 0 {
			return nil
		}

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if remaining := count - len(stale); remaining > 0 {
			err = tx.Set(makeResourceKey(id), storage.MarshalCount(remaining))
		} else {
			err = tx.Delete(makeResourceKey(id))
		}
		if err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListResources returns the IDs of all resources with stored chunks.
func (r *ChunkRepository) ListResources(ctx context.Context) ([]core.ResourceID, error) {
	var ids []core.ResourceID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(resourcePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			ids = append(ids, resourceIDFromKey(iter.Item().Key()))
		}
		return nil
	}, false)
	return ids, err
}

// Helper methods

// readChunk reads a chunk from the transaction. Returns nil when absent.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

// readCount reads the chunk count of a resource. Returns 0 when absent.
func readCount(tx *badger.Txn, id core.ResourceID) (int, error) {
	item, err := tx.Get(makeResourceKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var count int
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		count, unmarshalErr = storage.UnmarshalCount(val)
		return unmarshalErr
	})
	return count, err
}
