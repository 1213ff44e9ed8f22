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
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultRowsPerChunk is the number of rows grouped into one chunk.
const DefaultRowsPerChunk = 20

// Sheet is one worksheet of a workbook.
type Sheet struct {
	Name string
	Rows [][]string
}

// RowChunker groups tabular rows into chunks, rendering each row as
// "Row N: v1 | v2 | ...". N is one-based and counts from the top of the sheet.
type RowChunker struct {
	rowsPerChunk int
}

var _ Chunker = (*RowChunker)(nil)

// NewRowChunker creates a RowChunker. WithSize is in rows; overlap is not
// supported.
func NewRowChunker(opts ...Option) (*RowChunker, error) {
	s := &settings{size: DefaultRowsPerChunk}
	if err := apply(s, "row-chunker", opts); err != nil {
		return nil, err
	}
	if s.overlap != 0 {
		return nil, ErrInvalidOverlap
	}
	return &RowChunker{rowsPerChunk: s.size}, nil
}

// Chunk treats each line of text as a row of tab separated cells.
func (c *RowChunker) Chunk(text string) iter.Seq[string] {
	if isBlank(text) {
		return emptySeq
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = strings.Split(strings.TrimRight(line, "\r"), "\t")
	}
	return c.ChunkRows(rows)
}

// ChunkRows groups the rows of one sheet.
func (c *RowChunker) ChunkRows(rows [][]string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for start := 0; start < len(rows); start += c.rowsPerChunk {
			end := min(start+c.rowsPerChunk, len(rows))
			lines := make([]string, 0, end-start)
			for i, row := range rows[start:end] {
				lines = append(lines, fmt.Sprintf("Row %d: %s", start+i+1, strings.Join(row, " | ")))
			}
			if !yield(strings.Join(lines, "\n")) {
				return
			}
		}
	}
}

// ChunkSheets chunks every sheet in turn. Rows of different sheets never
// share a chunk.
func (c *RowChunker) ChunkSheets(sheets []Sheet) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, sheet := range sheets {
			for chunk := range c.ChunkRows(sheet.Rows) {
				if !yield(chunk) {
					return
				}
			}
		}
	}
}

// SheetRows reads every worksheet of an .xlsx workbook in tab order.
func SheetRows(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %w", ErrInvalidWorkbook, name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}
