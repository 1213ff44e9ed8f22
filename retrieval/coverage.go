package retrieval

import "github.com/poiesic/groundwork/core"

// EnsureCoverage returns results extended with an entry for every requested
// resource that has stored chunks but is missing from results. Added entries
// carry all of the resource's chunks in stored order, similarity
// core.CoverageSimilarity and IsComplete set. Resources without chunks stay
// absent. Applying EnsureCoverage to its own output changes nothing.
func EnsureCoverage(
	results []*core.ComparisonResult,
	requested []core.Resource,
	chunksByResource map[core.ResourceID][]*core.Chunk,
) []*core.ComparisonResult {
	covered := make(map[core.ResourceID]bool, len(results))
	for _, r := range results {
		covered[r.ResourceID] = true
	}

	out := make([]*core.ComparisonResult, len(results), len(results)+len(requested))
	copy(out, results)
	for _, resource := range requested {
		if covered[resource.ID] {
			continue
		}
		chunks := chunksByResource[resource.ID]
		if len(chunks) == 0 {
			continue
		}
		covered[resource.ID] = true
		out = append(out, &core.ComparisonResult{
			ResourceID: resource.ID,
			Name:       resource.DisplayName(),
			Content:    joinContent(chunks),
			Similarity: core.CoverageSimilarity,
			IsComplete: true,
			ChunkCount: len(chunks),
		})
	}
	return out
}
