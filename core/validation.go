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

import (
	"fmt"
	"strings"
)

// ValidateResource validates a Resource according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - ID must not contain NUL bytes
//
// The display name may be empty; callers fall back to the ID.
func ValidateResource(resource Resource) error {
	if strings.TrimSpace(string(resource.ID)) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidResource, ErrEmptyResourceID)
	}
	if strings.ContainsRune(string(resource.ID), 0) {
		return fmt.Errorf("%w: %w", ErrInvalidResource, ErrResourceIDNUL)
	}
	return nil
}

// ValidateChunk validates a Chunk before it is stored.
//
// Validation rules:
//   - ResourceID must not be empty or contain NUL bytes
//   - Content must not be empty
//   - Seq must not be negative
//   - Embedding must not be empty
//
// NOT validated:
//   - Embedding dimensionality (checked by the embedder against its config)
//   - ID (assigned by the repository when zero)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.ResourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyResourceID)
	}
	if strings.ContainsRune(string(chunk.ResourceID), 0) {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrResourceIDNUL)
	}
	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if chunk.Seq < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeSequence)
	}
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyEmbedding)
	}
	return nil
}

// ValidateRequest validates the input of a retrieval call.
// An empty resource list is valid and yields an empty result.
func ValidateRequest(question string, resources []Resource) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyQuestion)
	}
	for _, r := range resources {
		if err := ValidateResource(r); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

// DisplayName returns the resource name, or its ID when the name is blank.
func (r Resource) DisplayName() string {
	if strings.TrimSpace(r.Name) == "" {
		return string(r.ID)
	}
	return r.Name
}
