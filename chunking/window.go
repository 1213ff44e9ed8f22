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
)

const (
	DefaultWindowSize    = 800
	DefaultWindowOverlap = 100
)

// TokenWindowChunker cuts the token stream into fixed windows, ignoring
// text structure. Windows start every size-overlap tokens.
type TokenWindowChunker struct {
	size     int
	overlap  int
	encoding tokenizer.Encoding
	logger   *slog.Logger
}

var _ Chunker = (*TokenWindowChunker)(nil)

// NewTokenWindowChunker creates a TokenWindowChunker. Without WithEncoding
// it uses the cl100k_base encoding and fails if that cannot be loaded.
func NewTokenWindowChunker(opts ...Option) (*TokenWindowChunker, error) {
	s := &settings{size: DefaultWindowSize, overlap: DefaultWindowOverlap}
	if err := apply(s, "window-chunker", opts); err != nil {
		return nil, err
	}
	if s.encoding == nil {
		enc, err := tokenizer.Default()
		if err != nil {
			return nil, err
		}
		s.encoding = enc
	}
	return &TokenWindowChunker{
		size:     s.size,
		overlap:  s.overlap,
		encoding: s.encoding,
		logger:   s.logger,
	}, nil
}

// Chunk encodes text once per range and decodes each window.
func (c *TokenWindowChunker) Chunk(text string) iter.Seq[string] {
	if isBlank(text) {
		return emptySeq
	}
	return func(yield func(string) bool) {
		for _, window := range Windows(c.encoding.Encode(text), c.size, c.overlap) {
			if !yield(c.encoding.Decode(window)) {
				return
			}
		}
	}
}

// Windows slices tokens into windows of size tokens starting every
// size-overlap tokens. The last window may be shorter. It panics if
// overlap is not smaller than size.
func Windows(tokens []int, size, overlap int) [][]int {
	step := size - overlap
	if step <= 0 {
		panic("chunking: overlap must be smaller than size")
	}
	var windows [][]int
	for start := 0; start < len(tokens); start += step {
		end := min(start+size, len(tokens))
		windows = append(windows, tokens[start:end])
	}
	return windows
}
