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


// Package ai provides the embedding abstractions used by groundwork.
//
// Retrieval and ingestion depend on the Embedder interface only. Concrete
// backends live in sub-packages:
//
//   - ai/openai: OpenAI and OpenAI-compatible APIs via langchaingo
//   - ai/gemini: Google Gemini with rate limiting and a circuit breaker
//   - ai/mock: deterministic test doubles
//   - ai/cache: Redis memoization of query embeddings
//
// # Batching
//
// BatchingEmbedder wraps any Embedder. It groups texts, in order, into the
// fewest batches that fit a token budget, runs the batches on a bounded
// worker pool and checks that every vector has the configured
// dimensionality. Providers return their embedder already wrapped.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, gemini.NewProvider) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder) return CONCRETE types so tests can inject behavior
// and inspect call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "what is the refund policy?")
package ai
