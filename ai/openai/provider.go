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


package openai

import (
	"log/slog"

	"github.com/poiesic/groundwork/ai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider serves a batching embedder backed by an OpenAI-compatible endpoint.
type Provider struct {
	config   *ai.Config
	embedder *ai.BatchingEmbedder
	logger   *slog.Logger
}

// NewProvider validates config and connects the embedding client. Batch
// options tune the token budget and worker count of the returned embedder.
func NewProvider(config *ai.Config, opts ...ai.BatchOption) (ai.AIProvider, error) {
	return newProvider(config, opts)
}

func newProvider(config *ai.Config, opts []ai.BatchOption, extra ...openai.Option) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	raw, err := newEmbedder(config, extra...)
	if err != nil {
		return nil, err
	}
	batching, err := ai.NewBatchingEmbedder(raw, config, opts...)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:   config,
		embedder: batching,
		logger:   slog.Default().With("component", "openai-provider"),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close stops the batch workers. The HTTP client needs no teardown.
func (p *Provider) Close() error {
	p.logger.Debug("provider closed", "model", p.config.EmbeddingModel)
	p.embedder.Close()
	return nil
}
