// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

const (
	// DefaultBatchSize is the default number of chunks embedded per call
	DefaultBatchSize = 100
)

// ChunkIterator walks every stored chunk, one resource at a time, in batches.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch; non-positive values use DefaultBatchSize
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch. A batch never spans two resources.
// Iteration stops on the first error from fn or the repository.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func(id core.ResourceID, chunks []*core.Chunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := it.repo.ListResources(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		chunks, err := it.repo.GetChunksByResources(ctx, id)
		if err != nil {
			return err
		}

		for start := 0; start < len(chunks); start += it.batchSize {
			end := min(start+it.batchSize, len(chunks))
			if err := fn(id, chunks[start:end]); err != nil {
				return err
			}

			// Check context after each batch
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}

	return nil
}

// Count returns the number of stored resources and chunks.
func (it *ChunkIterator) Count(ctx context.Context) (resources, chunks int, err error) {
	ids, err := it.repo.ListResources(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		n, err := it.repo.CountChunks(ctx, id)
		if err != nil {
			return 0, 0, err
		}
		chunks += n
	}
	return len(ids), chunks, nil
}
