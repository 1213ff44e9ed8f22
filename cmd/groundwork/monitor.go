package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/retrieval"
)

// printMonitor writes one line per retrieval step.
type printMonitor struct {
	mu sync.Mutex
	w  io.Writer
}

var _ retrieval.Monitor = (*printMonitor)(nil)

func newPrintMonitor(w io.Writer) *printMonitor {
	return &printMonitor{w: w}
}

func (m *printMonitor) printf(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.w, format+"\n", args...)
}

func (m *printMonitor) Start(question string, resources []core.Resource) {
	m.printf("question: %q across %d resources", question, len(resources))
}

func (m *printMonitor) Classified(comprehensive bool) {
	if comprehensive {
		m.printf("mode: comprehensive, returning all content")
		return
	}
	m.printf("mode: focused, ranking by similarity")
}

func (m *printMonitor) AfterChunkLookup(chunksByResource map[core.ResourceID][]*core.Chunk) {
	total := 0
	for _, chunks := range chunksByResource {
		total += len(chunks)
	}
	m.printf("loaded %d chunks from %d resources", total, len(chunksByResource))
}

func (m *printMonitor) ResourceScored(resource core.Resource, selected, total int, similarity float64) {
	m.printf("  %s: selected %d of %d chunks, average similarity %.3f", resource.DisplayName(), selected, total, similarity)
}

func (m *printMonitor) FallbackApplied(resource core.Resource, selected int) {
	m.printf("  %s: nothing above threshold, kept top %d", resource.DisplayName(), selected)
}

func (m *printMonitor) CoverageApplied(added []*core.ComparisonResult) {
	for _, r := range added {
		m.printf("  %s: added in full for coverage", r.Name)
	}
}

func (m *printMonitor) Finish(results []*core.ComparisonResult) {
	m.printf("returned %d results", len(results))
}
