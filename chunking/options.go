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
	"log/slog"

	"github.com/poiesic/groundwork/tokenizer"
)

// settings collects the knobs shared by the chunker constructors.
// Each constructor fills in its own defaults before applying options.
type settings struct {
	size     int
	overlap  int
	counter  tokenizer.Counter
	encoding tokenizer.Encoding
	logger   *slog.Logger
}

// Option configures a chunker.
type Option func(*settings) error

// WithSize sets the target chunk size. Its unit depends on the chunker:
// tokens, words or rows.
func WithSize(n int) Option {
	return func(s *settings) error {
		if n <= 0 {
			return ErrInvalidChunkSize
		}
		s.size = n
		return nil
	}
}

// WithOverlap sets how much of the previous chunk is repeated at the start
// of the next one, in the chunker's unit.
func WithOverlap(n int) Option {
	return func(s *settings) error {
		if n < 0 {
			return ErrInvalidOverlap
		}
		s.overlap = n
		return nil
	}
}

// WithCounter sets the length function used by TokenChunker.
func WithCounter(c tokenizer.Counter) Option {
	return func(s *settings) error {
		s.counter = c
		return nil
	}
}

// WithEncoding sets the token encoding used by TokenWindowChunker.
// It also serves as the counter for TokenChunker.
func WithEncoding(e tokenizer.Encoding) Option {
	return func(s *settings) error {
		s.encoding = e
		if e != nil {
			s.counter = e
		}
		return nil
	}
}

// WithLogger sets a custom logger. If nil, uses slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

func apply(s *settings, component string, opts []Option) error {
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return err
		}
	}
	if s.overlap >= s.size {
		return ErrInvalidOverlap
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", component)
	return nil
}
