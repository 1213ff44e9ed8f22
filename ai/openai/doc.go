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


// Package openai embeds chunks and questions through any server that speaks
// the OpenAI embeddings API: OpenAI itself, Ollama, LocalAI or vLLM.
//
// Requests go through langchaingo. The provider wraps the raw client in an
// ai.BatchingEmbedder, so callers may pass any number of texts and rely on
// token-budget batching and dimension checks.
//
//	cfg := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	    ai.WithDimensions(768),
//	)
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//	vectors, err := provider.Embedder().EmbedTexts(ctx, contents)
package openai
