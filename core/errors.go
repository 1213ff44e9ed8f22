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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidResource indicates a Resource failed validation.
	ErrInvalidResource = errors.New("invalid resource")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidRequest indicates a retrieval request failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmptyResourceID indicates the resource ID is empty.
	ErrEmptyResourceID = errors.New("resource id cannot be empty")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyEmbedding indicates a chunk has no embedding vector.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")

	// ErrNegativeSequence indicates a chunk has a negative sequence number.
	ErrNegativeSequence = errors.New("sequence cannot be negative")

	// ErrResourceIDNUL marks a resource ID containing a NUL byte, which
	// stores use as the ID terminator in keys.
	ErrResourceIDNUL = errors.New("resource id cannot contain NUL bytes")

	// ErrEmptyQuestion indicates the question text is empty.
	ErrEmptyQuestion = errors.New("question cannot be empty")
)
