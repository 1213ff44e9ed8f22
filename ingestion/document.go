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


package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/poiesic/groundwork/chunking"
	"github.com/poiesic/groundwork/core"
)

// Document is the content of one resource ready for chunking.
// Prose documents carry Text; spreadsheets carry Sheets.
type Document struct {
	ResourceID core.ResourceID
	Name       string
	Text       string
	Sheets     []chunking.Sheet
}

// NewTextDocument creates a prose document. An empty id is replaced with a
// random UUID.
func NewTextDocument(id core.ResourceID, name, text string) *Document {
	return &Document{ResourceID: resourceID(id), Name: name, Text: text}
}

// LoadFile reads a .txt, .md, .pdf or .xlsx file into a document named
// after the file. An empty id is replaced with a random UUID.
func LoadFile(path string, id core.ResourceID) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadReader(bytes.NewReader(data), int64(len(data)), filepath.Base(path), id)
}

// LoadReader reads a document of size bytes. The format is chosen by the
// extension of name.
func LoadReader(r io.ReaderAt, size int64, name string, id core.ResourceID) (*Document, error) {
	doc := &Document{ResourceID: resourceID(id), Name: name}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt", ".md", ".text", "":
		data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
		if err != nil {
			return nil, err
		}
		doc.Text = string(data)
	case ".pdf":
		text, err := pdfText(r, size)
		if err != nil {
			return nil, err
		}
		doc.Text = text
	case ".xlsx":
		sheets, err := chunking.SheetRows(io.NewSectionReader(r, 0, size))
		if err != nil {
			return nil, err
		}
		doc.Sheets = sheets
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return doc, nil
}

// pdfText extracts the plain text of every page, separated by blank lines.
func pdfText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %w", ErrUnsupportedFormat, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func resourceID(id core.ResourceID) core.ResourceID {
	if strings.TrimSpace(string(id)) == "" {
		return core.ResourceID(uuid.NewString())
	}
	return id
}
