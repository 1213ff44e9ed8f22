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


// Package chunking splits resource content into overlapping segments sized
// for embedding.
package chunking

import (
	"iter"
	"strings"
)

// Chunker splits text into a lazy, finite sequence of segments. Each range
// over the returned sequence re-runs the split, so it can be consumed more
// than once.
type Chunker interface {
	Chunk(text string) iter.Seq[string]
}

// Collect drains a chunk sequence into a slice.
func Collect(seq iter.Seq[string]) []string {
	var out []string
	for s := range seq {
		out = append(out, s)
	}
	return out
}

func emptySeq(yield func(string) bool) {}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
