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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/groundwork/core"
)

// Chunk layout: id, resource id, seq, content, vector length, vector
// elements, inserted-at (unix micro).

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(id), nil
}

// MarshalCount serializes a non-negative count to bytes.
func MarshalCount(n int) []byte {
	buf := make([]byte, varint.Int.Size(n))
	varint.Int.Marshal(n, buf)
	return buf
}

// UnmarshalCount deserializes a count from bytes.
func UnmarshalCount(data []byte) (int, error) {
	n, _, err := varint.Int.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return n, nil
}

func chunkSize(chunk *core.Chunk) int {
	size := varint.Uint64.Size(uint64(chunk.Id))
	size += ord.String.Size(string(chunk.ResourceID))
	size += varint.Int.Size(chunk.Seq)
	size += ord.String.Size(chunk.Content)
	size += varint.Int.Size(len(chunk.Embedding))
	for _, v := range chunk.Embedding {
		size += raw.Float32.Size(v)
	}
	size += varint.Int64.Size(chunk.InsertedAt.UnixMicro())
	return size
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, chunkSize(chunk))
	n := varint.Uint64.Marshal(uint64(chunk.Id), buf)
	n += ord.String.Marshal(string(chunk.ResourceID), buf[n:])
	n += varint.Int.Marshal(chunk.Seq, buf[n:])
	n += ord.String.Marshal(chunk.Content, buf[n:])
	n += varint.Int.Marshal(len(chunk.Embedding), buf[n:])
	for _, v := range chunk.Embedding {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	varint.Int64.Marshal(chunk.InsertedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	var (
		chunk core.Chunk
		n     int
	)
	wrap := func(err error) error {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	id, m, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, wrap(err)
	}
	chunk.Id = core.ID(id)
	n += m

	resourceID, m, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, wrap(err)
	}
	chunk.ResourceID = core.ResourceID(resourceID)
	n += m

	chunk.Seq, m, err = varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, wrap(err)
	}
	n += m

	chunk.Content, m, err = ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, wrap(err)
	}
	n += m

	length, m, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, wrap(err)
	}
	n += m
	// Each float32 occupies 4 bytes.
	if length < 0 || length*4 > len(data)-n {
		return nil, fmt.Errorf("%w: vector length %d", ErrCorruptRecord, length)
	}
	if length > 0 {
		chunk.Embedding = make([]float32, length)
		for i := range chunk.Embedding {
			chunk.Embedding[i], m, err = raw.Float32.Unmarshal(data[n:])
			if err != nil {
				return nil, wrap(err)
			}
			n += m
		}
	}

	micros, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, wrap(err)
	}
	chunk.InsertedAt = time.UnixMicro(micros).UTC()

	return &chunk, nil
}
