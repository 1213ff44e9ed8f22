package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/poiesic/groundwork/retrieval"

// Retriever selects grounding content from stored resource chunks.
// It only reads from the repository and is safe for concurrent use.
type Retriever struct {
	repository     storage.ChunkRepository
	embedder       ai.Embedder
	logger         *slog.Logger
	tracer         trace.Tracer
	single         Limits
	multi          Limits
	fallbackTopK   int
	fallbackLadder bool
}

// NewRetriever creates a new retriever.
func NewRetriever(repository storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		repository:     repository,
		embedder:       embedder,
		logger:         slog.Default().With("component", "retriever"),
		tracer:         otel.Tracer(tracerName),
		single:         DefaultSingleResourceLimits,
		multi:          DefaultMultiResourceLimits,
		fallbackTopK:   DefaultFallbackTopK,
		fallbackLadder: true,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve returns one result per requested resource that has stored chunks,
// sorted by similarity, highest first.
func (r *Retriever) Retrieve(ctx context.Context, question string, resources []core.Resource) ([]*core.ComparisonResult, error) {
	return r.RetrieveWithMonitor(ctx, question, resources, nil)
}

// RetrieveWithMonitor is Retrieve with monitoring.
// The monitor receives callbacks at each stage of the retrieval.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, question string, resources []core.Resource, monitor Monitor) (results []*core.ComparisonResult, err error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	resources = dedupe(resources)
	if len(resources) > 0 {
		if err := core.ValidateRequest(question, resources); err != nil {
			return nil, err
		}
	}

	// Every started retrieval finishes, failed ones with no results.
	monitor.Start(question, resources)
	defer func() {
		if err != nil {
			monitor.Finish(nil)
		}
	}()
	if len(resources) == 0 {
		monitor.Finish(nil)
		return []*core.ComparisonResult{}, nil
	}

	comprehensive := IsComprehensive(question)
	monitor.Classified(comprehensive)

	ctx, span := r.tracer.Start(ctx, "retrieval.Retrieve", trace.WithAttributes(
		attribute.Int("retrieval.resources", len(resources)),
		attribute.Bool("retrieval.comprehensive", comprehensive),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("retrieval.results", len(results)))
		}
		span.End()
	}()

	// 1. One lookup for every requested resource
	ids := make([]core.ResourceID, len(resources))
	for i, res := range resources {
		ids[i] = res.ID
	}
	chunks, err := r.repository.GetChunksByResources(ctx, ids...)
	if err != nil {
		r.logger.Error("error fetching chunks", "resources", len(ids), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreLookup, err)
	}
	if len(chunks) == 0 {
		r.logger.Debug("no stored chunks for requested resources", "resources", len(ids))
		monitor.Finish(nil)
		return []*core.ComparisonResult{}, nil
	}
	chunksByResource := GroupByResource(chunks)
	monitor.AfterChunkLookup(chunksByResource)

	// 2. Select content
	if comprehensive {
		results = r.comprehensive(resources, chunksByResource)
	} else {
		results, err = r.targeted(ctx, question, resources, chunksByResource, monitor)
		if err != nil {
			return nil, err
		}
	}

	// 3. Guarantee coverage
	covered := EnsureCoverage(results, resources, chunksByResource)
	if added := covered[len(results):]; len(added) > 0 {
		r.logger.Debug("coverage added resources", "count", len(added))
		monitor.CoverageApplied(added)
	}
	results = covered

	slices.SortStableFunc(results, func(a, b *core.ComparisonResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	r.logger.Debug("retrieval complete",
		"comprehensive", comprehensive,
		"resources", len(resources),
		"results", len(results))
	monitor.Finish(results)
	return results, nil
}

// comprehensive returns every chunk of every resource.
func (r *Retriever) comprehensive(resources []core.Resource, chunksByResource map[core.ResourceID][]*core.Chunk) []*core.ComparisonResult {
	results := make([]*core.ComparisonResult, 0, len(resources))
	for _, res := range resources {
		chunks := chunksByResource[res.ID]
		if len(chunks) == 0 {
			continue
		}
		results = append(results, &core.ComparisonResult{
			ResourceID: res.ID,
			Name:       res.DisplayName(),
			Content:    joinContent(chunks),
			Similarity: core.ComprehensiveSimilarity,
			IsComplete: true,
			ChunkCount: len(chunks),
		})
	}
	return results
}

// scoredChunk pairs a chunk with its similarity to the query.
type scoredChunk struct {
	chunk      *core.Chunk
	similarity float64
}

// targeted embeds the question and selects the best chunks of each resource.
func (r *Retriever) targeted(
	ctx context.Context,
	question string,
	resources []core.Resource,
	chunksByResource map[core.ResourceID][]*core.Chunk,
	monitor Monitor,
) ([]*core.ComparisonResult, error) {
	ctx, span := r.tracer.Start(ctx, "retrieval.EmbedQuery")
	query, err := r.embedder.EmbedText(ctx, question)
	span.End()
	if err != nil {
		r.logger.Error("error generating embedding for question", "err", err)
		return nil, ai.ProviderError(err)
	}
	if err := checkQueryDimensions(query, chunksByResource); err != nil {
		r.logger.Error("query embedding does not match stored chunks", "err", err)
		return nil, err
	}

	limits := r.multi
	if len(resources) == 1 {
		limits = r.single
	}

	// Score resources concurrently, each into its own slot
	slots := make([]*core.ComparisonResult, len(resources))
	var wg sync.WaitGroup
	for i, res := range resources {
		chunks := chunksByResource[res.ID]
		if len(chunks) == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots[i] = r.scoreResource(res, chunks, query, limits, monitor)
		}()
	}
	wg.Wait()

	results := make([]*core.ComparisonResult, 0, len(resources))
	for _, result := range slots {
		if result != nil {
			results = append(results, result)
		}
	}
	slices.SortStableFunc(results, func(a, b *core.ComparisonResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	return results, nil
}

// scoreResource ranks a resource's chunks against the query and applies the
// limits and fallback ladder. Returns nil when nothing is selected.
func (r *Retriever) scoreResource(res core.Resource, chunks []*core.Chunk, query []float32, limits Limits, monitor Monitor) *core.ComparisonResult {
	scored := make([]scoredChunk, len(chunks))
	for i, chunk := range chunks {
		scored[i] = scoredChunk{chunk: chunk, similarity: Similarity(chunk.Embedding, query)}
	}
	slices.SortStableFunc(scored, func(a, b scoredChunk) int {
		return cmp.Compare(b.similarity, a.similarity)
	})

	selected := make([]scoredChunk, 0, limits.MaxChunks)
	for _, sc := range scored {
		if len(selected) == limits.MaxChunks {
			break
		}
		if sc.similarity > limits.MinSimilarity {
			selected = append(selected, sc)
		}
	}

	if len(selected) == 0 {
		if !r.fallbackLadder {
			r.logger.Debug("no chunks above threshold", "resource", res.ID, "threshold", limits.MinSimilarity)
			monitor.ResourceScored(res, 0, len(chunks), 0)
			return nil
		}
		selected = scored[:min(r.fallbackTopK, len(scored))]
		if len(selected) == 0 {
			selected = scored
		}
		r.logger.Debug("no chunks above threshold, using fallback",
			"resource", res.ID,
			"threshold", limits.MinSimilarity,
			"selected", len(selected))
		monitor.FallbackApplied(res, len(selected))
	}

	picked := make([]*core.Chunk, len(selected))
	var sum float64
	for i, sc := range selected {
		picked[i] = sc.chunk
		sum += sc.similarity
	}
	avg := sum / float64(len(selected))
	monitor.ResourceScored(res, len(selected), len(chunks), avg)

	return &core.ComparisonResult{
		ResourceID: res.ID,
		Name:       res.DisplayName(),
		Content:    joinContent(picked),
		Similarity: avg,
		IsComplete: false,
		ChunkCount: len(selected),
	}
}

// checkQueryDimensions fails when no stored chunk has the query's dimensionality.
func checkQueryDimensions(query []float32, chunksByResource map[core.ResourceID][]*core.Chunk) error {
	var seen int
	for _, chunks := range chunksByResource {
		for _, chunk := range chunks {
			if len(chunk.Embedding) == len(query) {
				return nil
			}
			seen = len(chunk.Embedding)
		}
	}
	return fmt.Errorf("%w: query has %d dimensions, stored chunks have %d", ai.ErrDimensionMismatch, len(query), seen)
}

// dedupe drops repeated resource IDs, keeping the first occurrence.
func dedupe(resources []core.Resource) []core.Resource {
	seen := make(map[core.ResourceID]bool, len(resources))
	out := make([]core.Resource, 0, len(resources))
	for _, res := range resources {
		if seen[res.ID] {
			continue
		}
		seen[res.ID] = true
		out = append(out, res)
	}
	return out
}
