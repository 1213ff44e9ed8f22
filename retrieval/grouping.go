package retrieval

import (
	"cmp"
	"slices"
	"strings"

	"github.com/poiesic/groundwork/core"
)

// GroupByResource groups chunks by resource ID. Each group is in stored
// order (ascending Seq) whatever the order of the input. The input slice is
// not modified.
func GroupByResource(chunks []*core.Chunk) map[core.ResourceID][]*core.Chunk {
	grouped := make(map[core.ResourceID][]*core.Chunk)
	for _, chunk := range chunks {
		if chunk == nil {
			continue
		}
		grouped[chunk.ResourceID] = append(grouped[chunk.ResourceID], chunk)
	}
	for _, group := range grouped {
		slices.SortStableFunc(group, func(a, b *core.Chunk) int {
			return cmp.Compare(a.Seq, b.Seq)
		})
	}
	return grouped
}

// joinContent joins chunk texts with core.ChunkSeparator.
func joinContent(chunks []*core.Chunk) string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	return strings.Join(texts, core.ChunkSeparator)
}
