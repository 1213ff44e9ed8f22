package badger

import (
	"errors"

	"github.com/poiesic/groundwork/storage"
)

// NewMemoryRepository returns a repository over a fresh in-memory backend.
// Tests close both values; closing the repository leaves the backend open.
func NewMemoryRepository() (storage.ChunkRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}
	repo, err := NewChunkRepository(backend)
	if err != nil {
		return nil, nil, errors.Join(err, backend.Close())
	}
	return repo, backend, nil
}
