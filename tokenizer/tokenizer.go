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


// Package tokenizer counts and encodes tokens for chunking and embedding
// batch budgets.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used by the OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// ErrEncodingUnavailable is returned when a BPE encoding cannot be loaded.
var ErrEncodingUnavailable = errors.New("token encoding unavailable")

// Counter measures the length of a text in tokens.
type Counter interface {
	Count(text string) int
}

// Encoding converts text to and from token ids.
type Encoding interface {
	Counter
	Encode(text string) []int
	Decode(tokens []int) string
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(text string) int

// Count calls f(text).
func (f CounterFunc) Count(text string) int {
	return f(text)
}

// Words counts whitespace separated words.
var Words = CounterFunc(func(text string) int {
	return len(strings.Fields(text))
})

// Approximate estimates tokens as one per four characters, rounding up.
var Approximate = CounterFunc(func(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
})

// Tiktoken is an Encoding backed by tiktoken-go.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var _ Encoding = (*Tiktoken)(nil)

// New loads the named BPE encoding. The first load of an encoding may
// download its ranks; set TIKTOKEN_CACHE_DIR to reuse them.
func New(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncodingUnavailable, encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

var (
	defaultOnce sync.Once
	defaultEnc  *Tiktoken
	defaultErr  error
)

// Default returns the shared DefaultEncoding instance.
func Default() (*Tiktoken, error) {
	defaultOnce.Do(func() {
		defaultEnc, defaultErr = New(DefaultEncoding)
	})
	return defaultEnc, defaultErr
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.EncodeOrdinary(text))
}

// Encode returns the token ids of text, treating special tokens as text.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.EncodeOrdinary(text)
}

// Decode returns the text of a token id sequence.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
