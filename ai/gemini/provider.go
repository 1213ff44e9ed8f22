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


package gemini

import (
	"context"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/groundwork/ai"
	"google.golang.org/api/option"
)

// Provider implements ai.AIProvider on the Gemini API.
type Provider struct {
	raw      *Embedder
	embedder *ai.BatchingEmbedder
	logger   *slog.Logger
}

// NewProvider connects to Gemini with config.APIKey.
//
// Returns ai.AIProvider interface to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config, opts ...ai.BatchOption) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, ai.ProviderError(err)
	}
	query := client.EmbeddingModel(config.EmbeddingModel)
	query.TaskType = genai.TaskTypeRetrievalQuery
	document := client.EmbeddingModel(config.EmbeddingModel)
	document.TaskType = genai.TaskTypeRetrievalDocument

	p, err := newProvider(&genaiBackend{client: client, query: query, document: document}, config, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func newProvider(b backend, config *ai.Config, opts []ai.BatchOption) (*Provider, error) {
	raw := newEmbedder(b, config)
	batching, err := ai.NewBatchingEmbedder(raw, config, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{
		raw:      raw,
		embedder: batching,
		logger:   slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases the worker pool and the API client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	p.embedder.Close()
	return p.raw.backend.close()
}
