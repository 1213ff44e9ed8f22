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
	"strings"
	"unicode"
)

const (
	DefaultSentenceWords   = 200
	DefaultSentenceOverlap = 40
)

// SentenceChunker packs whole sentences into chunks bounded by a word
// budget. Consecutive chunks share trailing sentences of the previous chunk
// covering at least the overlap in words. A sentence is never split; one
// longer than the budget becomes a chunk of its own.
type SentenceChunker struct {
	maxWords int
	overlap  int
	logger   *slog.Logger
}

var _ Chunker = (*SentenceChunker)(nil)

// NewSentenceChunker creates a SentenceChunker. WithSize and WithOverlap
// are in words.
func NewSentenceChunker(opts ...Option) (*SentenceChunker, error) {
	s := &settings{size: DefaultSentenceWords, overlap: DefaultSentenceOverlap}
	if err := apply(s, "sentence-chunker", opts); err != nil {
		return nil, err
	}
	return &SentenceChunker{maxWords: s.size, overlap: s.overlap, logger: s.logger}, nil
}

// Chunk splits text into sentences and packs them.
func (c *SentenceChunker) Chunk(text string) iter.Seq[string] {
	if isBlank(text) {
		return emptySeq
	}
	return c.Pack(SplitSentences(text))
}

// Pack groups pre-split sentences into chunks.
func (c *SentenceChunker) Pack(sentences []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		var current []string
		words := 0

		for _, sentence := range sentences {
			n := wordCount(sentence)
			if n == 0 {
				continue
			}
			if words+n > c.maxWords && len(current) > 0 {
				if !yield(strings.Join(current, " ")) {
					return
				}
				current = c.tail(current)
				words = 0
				for _, s := range current {
					words += wordCount(s)
				}
			}
			current = append(current, sentence)
			words += n
		}

		if len(current) > 0 {
			yield(strings.Join(current, " "))
		}
	}
}

// tail returns the trailing sentences of a flushed chunk that cover at
// least the overlap, always dropping the first sentence so every chunk
// advances.
func (c *SentenceChunker) tail(chunk []string) []string {
	if c.overlap == 0 {
		return nil
	}
	covered := 0
	start := len(chunk)
	for start > 1 && covered < c.overlap {
		start--
		covered += wordCount(chunk[start])
	}
	return append([]string(nil), chunk[start:]...)
}

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace or the end of input. Sentences are trimmed and empty ones
// dropped.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			flush(i + 1)
		}
	}
	flush(len(runes))
	return sentences
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
