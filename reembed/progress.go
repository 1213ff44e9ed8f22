package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/groundwork/core"
)

// ProgressTracker prints a single self-overwriting status line while a
// re-embed run walks the store. It is safe for concurrent use.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	current        int
	reportInterval int
	lastReported   int
	resource       core.ResourceID
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker reports to writer each time at least reportInterval
// more of the total chunks are done. A nil writer discards output.
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: max(reportInterval, 1),
	}
}

// Start resets the counters and the clock. Updates before Start are ignored.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// SetResource names the resource currently being processed in later reports.
func (p *ProgressTracker) SetResource(id core.ResourceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resource = id
}

// Update records an absolute chunk count.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.advance(current)
}

func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.advance(p.current + delta)
}

// Finish forces the count to total and ends the status line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = p.total
	p.resource = ""
	p.report()
	fmt.Fprintln(p.writer)
}

func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// advance caps current at total. Callers hold mu.
func (p *ProgressTracker) advance(current int) {
	p.current = min(current, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

func (p *ProgressTracker) report() {
	var perSecond, pct float64
	if secs := time.Since(p.startTime).Seconds(); secs > 0 {
		perSecond = float64(p.current) / secs
	}
	if p.total > 0 {
		pct = 100 * float64(p.current) / float64(p.total)
	}
	fmt.Fprintf(p.writer, "\rRe-embedded %d/%d chunks (%.1f%%) - %.1f chunks/s",
		p.current, p.total, pct, perSecond)
	if p.resource != "" {
		fmt.Fprintf(p.writer, " [%s]", p.resource)
	}
}
