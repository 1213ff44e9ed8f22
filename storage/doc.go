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


// Package storage defines where chunks live between ingestion and retrieval.
//
// Retrieval only reads: it asks for every chunk of a set of resources and
// expects them back grouped by resource in ascending sequence order.
// Writes come from the ingestion pipeline and the re-embedder.
//
// Three backends satisfy ChunkRepository:
//
//   - storage/badger keeps chunks in an embedded key-value store and is the default.
//   - storage/chromem maps each resource to a chromem-go collection.
//   - storage/postgres keeps one table through bun.
//
// Chunks belong to exactly one resource; DeleteResource drops all of them and
// reports ErrNotFound when the resource had none. Repositories are used from
// many goroutines at once and must synchronize internally.
package storage
