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


package chunking

import (
	"iter"
	"log/slog"

	"github.com/poiesic/groundwork/tokenizer"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultTokenChunkSize    = 1000
	DefaultTokenChunkOverlap = 200
)

// Separators is the split hierarchy, coarsest first: paragraph, line, word,
// character.
var Separators = []string{"\n\n", "\n", " ", ""}

// TokenChunker splits prose on natural boundaries into segments measured in
// model tokens.
type TokenChunker struct {
	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

var _ Chunker = (*TokenChunker)(nil)

// NewTokenChunker creates a TokenChunker. Without WithCounter or
// WithEncoding it counts with the cl100k_base encoding, falling back to
// tokenizer.Approximate when that encoding cannot be loaded.
func NewTokenChunker(opts ...Option) (*TokenChunker, error) {
	s := &settings{size: DefaultTokenChunkSize, overlap: DefaultTokenChunkOverlap}
	if err := apply(s, "token-chunker", opts); err != nil {
		return nil, err
	}
	if s.counter == nil {
		enc, err := tokenizer.Default()
		if err != nil {
			s.logger.Warn("falling back to approximate token counts", "error", err)
			s.counter = tokenizer.Approximate
		} else {
			s.counter = enc
		}
	}

	return &TokenChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(s.size),
			textsplitter.WithChunkOverlap(s.overlap),
			textsplitter.WithSeparators(Separators),
			textsplitter.WithLenFunc(s.counter.Count),
		),
		logger: s.logger,
	}, nil
}

// Chunk splits text. Empty or whitespace-only input yields nothing.
func (c *TokenChunker) Chunk(text string) iter.Seq[string] {
	if isBlank(text) {
		return emptySeq
	}
	return func(yield func(string) bool) {
		parts, err := c.splitter.SplitText(text)
		if err != nil {
			c.logger.Error("split failed", "error", err)
			return
		}
		for _, part := range parts {
			if isBlank(part) {
				continue
			}
			if !yield(part) {
				return
			}
		}
	}
}
