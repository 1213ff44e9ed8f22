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


// Package retrieval selects the stored content of caller-chosen resources
// that best grounds an answer to a question.
//
// A Retriever classifies the question first. Comprehensive questions
// ("summarize", "tell me about", ...) return every chunk of every resource.
// Targeted questions are embedded once and each resource's chunks are
// scored by cosine similarity, then filtered by a similarity threshold and a
// per-resource chunk limit that both depend on how many resources were
// requested. A fallback ladder keeps weakly matching resources represented,
// and EnsureCoverage guarantees that every requested resource with stored
// chunks appears in the result.
//
// BuildResponse wraps results in the envelope returned to tool callers.
package retrieval
