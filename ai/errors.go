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


package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingProvider wraps any failure reported by an embedding backend.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrDimensionMismatch is returned when a vector does not have the
	// configured dimensionality. It signals a configuration error: stored
	// vectors and new ones were produced by different models.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbedderRequired is returned when a wrapper is built without an inner embedder.
	ErrEmbedderRequired = errors.New("embedder required")
)

// ProviderError wraps err in ErrEmbeddingProvider unless it already is one.
func ProviderError(err error) error {
	if err == nil || errors.Is(err, ErrEmbeddingProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
}

// CheckDimensions returns ErrDimensionMismatch if any vector's length differs from want.
func CheckDimensions(want int, vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), want)
		}
	}
	return nil
}
