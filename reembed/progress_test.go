package reembed

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Output(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		interval int
		drive    func(p *ProgressTracker)
		want     []string
		absent   []string
	}{
		{
			name: "increments reach total", total: 100, interval: 10,
			drive: func(p *ProgressTracker) {
				p.Increment(40)
				p.Increment(60)
			},
			want: []string{"100/100 chunks", "100.0%"},
		},
		{
			name: "overshoot is capped", total: 100, interval: 10,
			drive:  func(p *ProgressTracker) { p.Increment(150) },
			want:   []string{"100/100"},
			absent: []string{"150"},
		},
		{
			name: "resource label", total: 40, interval: 5,
			drive: func(p *ProgressTracker) {
				p.SetResource("handbook")
				p.Update(20)
			},
			want: []string{"20/40", "[handbook]"},
		},
		{
			name: "empty store", total: 0, interval: 10,
			drive: func(p *ProgressTracker) { p.Finish() },
			want:  []string{"0/0", "0.0%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewProgressTracker(&buf, tt.total, tt.interval)
			p.Start()
			tt.drive(p)

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, out, a)
			}
		})
	}
}

func TestProgressTracker_FinishClearsResource(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 10, 100)
	p.Start()
	p.SetResource("r1")
	p.Update(3)
	assert.Empty(t, buf.String(), "below interval")

	p.Finish()
	out := buf.String()
	assert.Contains(t, out, "10/10")
	assert.NotContains(t, out, "[r1]")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Greater(t, p.Elapsed(), time.Duration(0))
}

func TestProgressTracker_IgnoredBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 100, 10)

	p.Update(50)
	p.Increment(10)
	p.Finish()

	assert.Zero(t, buf.Len())
	assert.Zero(t, p.Elapsed())
}

func TestProgressTracker_Interval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 1000, 100)
	p.Start()

	steps := []struct {
		to     int
		prints bool
	}{
		{50, false},
		{100, true},
		{150, false},
		{250, true},
	}
	for _, s := range steps {
		buf.Reset()
		p.Update(s.to)
		assert.Equal(t, s.prints, buf.Len() > 0, "update to %d", s.to)
	}
}

func TestProgressTracker_ConcurrentIncrements(t *testing.T) {
	p := NewProgressTracker(nil, 800, 1)
	p.Start()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				p.Increment(1)
			}
		}()
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 800, p.current)
}
