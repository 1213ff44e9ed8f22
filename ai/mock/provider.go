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


package mock

import (
	"sync/atomic"

	"github.com/poiesic/groundwork/ai"
)

// MockProvider hands out a deterministic embedder and remembers whether it
// was closed.
type MockProvider struct {
	embedder *MockEmbedder
	closed   atomic.Bool
}

// NewMockProvider returns a provider whose vectors have dim components, or
// DefaultDimensions when dim is not positive. Tests that need call counts
// type-assert to *MockProvider and use GetMockEmbedder.
func NewMockProvider(dim int) ai.AIProvider {
	return &MockProvider{embedder: NewMockEmbedder(dim)}
}

// NewMockProviderWithEmbedder shares a preconfigured embedder, for example one
// with a failure injected.
func NewMockProviderWithEmbedder(embedder *MockEmbedder) ai.AIProvider {
	return &MockProvider{embedder: embedder}
}

func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *MockProvider) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *MockProvider) Closed() bool {
	return p.closed.Load()
}

func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}
