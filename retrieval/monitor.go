package retrieval

import "github.com/poiesic/groundwork/core"

// Monitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate steps, e.g. for verbose CLI output.
// ResourceScored and FallbackApplied are called from concurrent goroutines.
type Monitor interface {
	Start(question string, resources []core.Resource)
	Classified(comprehensive bool)
	AfterChunkLookup(chunksByResource map[core.ResourceID][]*core.Chunk)
	ResourceScored(resource core.Resource, selected, total int, similarity float64)
	FallbackApplied(resource core.Resource, selected int)
	CoverageApplied(added []*core.ComparisonResult)
	Finish(results []*core.ComparisonResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []core.Resource)                    {}
func (n *noopMonitor) Classified(_ bool)                                    {}
func (n *noopMonitor) AfterChunkLookup(_ map[core.ResourceID][]*core.Chunk) {}
func (n *noopMonitor) ResourceScored(_ core.Resource, _, _ int, _ float64)  {}
func (n *noopMonitor) FallbackApplied(_ core.Resource, _ int)               {}
func (n *noopMonitor) CoverageApplied(_ []*core.ComparisonResult)           {}
func (n *noopMonitor) Finish(_ []*core.ComparisonResult)                    {}
