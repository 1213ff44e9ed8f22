package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ChunkSeparator joins the contents of consecutive chunks in a result.
const ChunkSeparator = "\n\n---\n\n"

const (
	// ComprehensiveSimilarity is assigned to results built for comprehensive queries.
	ComprehensiveSimilarity = 1.0
	// CoverageSimilarity is assigned to results injected by coverage fallback.
	CoverageSimilarity = 0.5
)

// ID is a unique identifier for stored chunks.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the ID of the chunk at position seq of a resource.
func ChunkID(resourceID ResourceID, seq int, content string) ID {
	return IDFromContent(string(resourceID) + "\x00" + strconv.Itoa(seq) + "\x00" + content)
}

// ResourceID identifies a resource. Resources are owned by an external store;
// the engine only sees their identifiers and display names.
type ResourceID string

// Resource is a caller-selected document whose chunks live in the chunk store.
type Resource struct {
	ID   ResourceID `json:"id"`
	Name string     `json:"name"`
}

// Chunk is an embedded segment of a resource's text content.
// Chunks are immutable once stored and are deleted with their resource.
type Chunk struct {
	Id         ID
	ResourceID ResourceID
	Seq        int // Position in the chunker output; stored order is ascending Seq
	Content    string
	Embedding  []float32
	InsertedAt time.Time
}

// ComparisonResult is the per-resource output of a retrieval.
type ComparisonResult struct {
	ResourceID ResourceID `json:"resourceId"`
	Name       string     `json:"name"`
	Content    string     `json:"content"`
	Similarity float64    `json:"similarity"`
	IsComplete bool       `json:"isComplete"`
	ChunkCount int        `json:"chunkCount"` // Chunks joined into Content
}
