package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/ai/mock"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unit returns a 2-d unit vector whose cosine with [1, 0] is s.
func unit(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

var queryVector = []float32{1, 0}

type fixture struct {
	repo     storage.ChunkRepository
	embedder *mock.MockEmbedder
	// similarity of every stored chunk by content
	sims map[string]float64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return &fixture{
		repo:     repo,
		embedder: mock.NewMockEmbedder(2),
		sims:     make(map[string]float64),
	}
}

// addResource stores one chunk per similarity, in the given order.
func (f *fixture) addResource(t *testing.T, id core.ResourceID, sims ...float64) {
	t.Helper()
	chunks := make([]*core.Chunk, len(sims))
	for i, s := range sims {
		content := fmt.Sprintf("%s chunk %02d", id, i)
		f.sims[content] = s
		chunks[i] = &core.Chunk{ResourceID: id, Seq: i, Content: content, Embedding: unit(s)}
	}
	_, err := f.repo.AddChunks(context.Background(), chunks...)
	require.NoError(t, err)
}

func (f *fixture) retriever(t *testing.T, opts ...Option) *Retriever {
	t.Helper()
	r, err := NewRetriever(f.repo, f.embedder, opts...)
	require.NoError(t, err)
	return r
}

// ask registers the query vector for question and retrieves.
func (f *fixture) ask(t *testing.T, r *Retriever, question string, resources ...core.Resource) []*core.ComparisonResult {
	t.Helper()
	f.embedder.SetVector(question, queryVector)
	results, err := r.Retrieve(context.Background(), question, resources)
	require.NoError(t, err)
	return results
}

func (f *fixture) contentSims(content string) []float64 {
	parts := strings.Split(content, core.ChunkSeparator)
	sims := make([]float64, len(parts))
	for i, p := range parts {
		sims[i] = f.sims[p]
	}
	return sims
}

func allChunks(id core.ResourceID, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s chunk %02d", id, i)
	}
	return strings.Join(parts, core.ChunkSeparator)
}

func ids(results []*core.ComparisonResult) []core.ResourceID {
	out := make([]core.ResourceID, len(results))
	for i, r := range results {
		out[i] = r.ResourceID
	}
	return out
}

// spread returns n similarities starting at start, step apart.
func spread(n int, start, step float64) []float64 {
	sims := make([]float64, n)
	for i := range sims {
		sims[i] = start + step*float64(i)
	}
	return sims
}

func TestNewRetriever(t *testing.T) {
	f := newFixture(t)

	t.Run("valid configuration", func(t *testing.T) {
		r, err := NewRetriever(f.repo, f.embedder)
		require.NoError(t, err)
		assert.Equal(t, DefaultSingleResourceLimits, r.single)
		assert.Equal(t, DefaultMultiResourceLimits, r.multi)
		assert.Equal(t, DefaultFallbackTopK, r.fallbackTopK)
		assert.True(t, r.fallbackLadder)
	})

	t.Run("with options", func(t *testing.T) {
		r, err := NewRetriever(f.repo, f.embedder,
			WithLogger(nil),
			WithSingleResourceLimits(5, 0.5),
			WithMultiResourceLimits(2, 0.6),
			WithFallbackTopK(0),
			WithFallbackLadder(false),
			WithTracer(nil),
		)
		require.NoError(t, err)
		assert.Equal(t, Limits{MaxChunks: 5, MinSimilarity: 0.5}, r.single)
		assert.Equal(t, Limits{MaxChunks: 2, MinSimilarity: 0.6}, r.multi)
		assert.Zero(t, r.fallbackTopK)
		assert.False(t, r.fallbackLadder)
		assert.NotNil(t, r.tracer)
	})

	t.Run("nil repository", func(t *testing.T) {
		_, err := NewRetriever(nil, f.embedder)
		assert.Equal(t, ErrRepositoryRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewRetriever(f.repo, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	invalid := []struct {
		name string
		opt  Option
	}{
		{"zero max chunks", WithSingleResourceLimits(0, 0.2)},
		{"negative threshold", WithMultiResourceLimits(8, -0.1)},
		{"threshold of one", WithMultiResourceLimits(8, 1)},
		{"negative top-k", WithFallbackTopK(-1)},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRetriever(f.repo, f.embedder, tc.opt)
			assert.ErrorIs(t, err, ErrInvalidLimits)
		})
	}
}

func TestRetrieve_EmptyResources(t *testing.T) {
	f := newFixture(t)
	r := f.retriever(t)

	results, err := r.Retrieve(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, f.embedder.CallCount())
}

func TestRetrieve_NoStoredChunks(t *testing.T) {
	f := newFixture(t)
	r := f.retriever(t)

	results, err := r.Retrieve(context.Background(), "how do cells divide", []core.Resource{{ID: "ghost", Name: "Ghost"}})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, f.embedder.CallCount(), "nothing to score, so the question is not embedded")
}

func TestRetrieve_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	r := f.retriever(t)

	_, err := r.Retrieve(context.Background(), "  ", []core.Resource{{ID: "r1", Name: "One"}})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	_, err = r.Retrieve(context.Background(), "question", []core.Resource{{ID: "", Name: "Nameless"}})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestRetrieve_SummarizeReturnsEverything(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "r1", 0.1, 0.9, 0.4)
	r := f.retriever(t)

	results := f.ask(t, r, "summarize this", core.Resource{ID: "r1", Name: "Photosynthesis Notes"})

	require.Len(t, results, 1)
	assert.Equal(t, core.ResourceID("r1"), results[0].ResourceID)
	assert.Equal(t, "Photosynthesis Notes", results[0].Name)
	assert.True(t, results[0].IsComplete)
	assert.Equal(t, 1.0, results[0].Similarity)
	assert.Equal(t, 3, results[0].ChunkCount)
	assert.Equal(t, "r1 chunk 00\n\n---\n\nr1 chunk 01\n\n---\n\nr1 chunk 02", results[0].Content)
	assert.Zero(t, f.embedder.CallCount(), "comprehensive questions are not embedded")
}

func TestRetrieve_ComprehensiveCompleteness(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "a", spread(12, 0.05, 0.05)...)
	f.addResource(t, "b", 0.5)
	f.addResource(t, "c", spread(4, 0.9, 0.02)...)
	r := f.retriever(t)

	resources := []core.Resource{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}
	for _, question := range []string{"Give me EVERYTHING", "an overview please", "list the steps", "tell me about it"} {
		t.Run(question, func(t *testing.T) {
			results := f.ask(t, r, question, resources...)
			require.Len(t, results, 3)
			want := map[core.ResourceID]int{"a": 12, "b": 1, "c": 4}
			for _, res := range results {
				assert.True(t, res.IsComplete)
				assert.Equal(t, core.ComprehensiveSimilarity, res.Similarity)
				assert.Equal(t, allChunks(res.ResourceID, want[res.ResourceID]), res.Content)
			}
			assert.Equal(t, []core.ResourceID{"a", "b", "c"}, ids(results), "ties keep request order")
		})
	}
}

func TestRetrieve_SingleResourceThreshold(t *testing.T) {
	f := newFixture(t)
	// 0.03, 0.08, ... 0.98: sixteen chunks above 0.2
	f.addResource(t, "r1", spread(20, 0.03, 0.05)...)
	r := f.retriever(t)

	results := f.ask(t, r, "how do cells divide", core.Resource{ID: "r1", Name: "Biology"})

	require.Len(t, results, 1)
	res := results[0]
	assert.False(t, res.IsComplete)
	assert.Equal(t, 15, res.ChunkCount)

	sims := f.contentSims(res.Content)
	require.Len(t, sims, 15)
	var sum float64
	for i, s := range sims {
		assert.Greater(t, s, 0.2)
		if i > 0 {
			assert.GreaterOrEqual(t, sims[i-1], s, "chunks are sorted by similarity")
		}
		sum += s
	}
	assert.InDelta(t, 0.98, sims[0], 1e-9)
	assert.InDelta(t, sum/15, res.Similarity, 1e-4)
}

func TestRetrieve_MultiResourceThreshold(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "a", spread(20, 0.03, 0.05)...)
	f.addResource(t, "b", spread(20, 0.01, 0.04)...)
	r := f.retriever(t)

	results := f.ask(t, r, "how do cells divide",
		core.Resource{ID: "a", Name: "A"},
		core.Resource{ID: "b", Name: "B"})

	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.IsComplete)
		sims := f.contentSims(res.Content)
		assert.LessOrEqual(t, len(sims), 8)
		assert.Equal(t, len(sims), res.ChunkCount)
		for i, s := range sims {
			assert.Greater(t, s, 0.3)
			if i > 0 {
				assert.GreaterOrEqual(t, sims[i-1], s)
			}
		}
	}
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
}

func TestRetrieve_FallbackLadder(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "weak", 0.05, 0.1, 0.02, 0.08, 0.01)
	r := f.retriever(t)

	results := f.ask(t, r, "how do cells divide", core.Resource{ID: "weak", Name: "Weak"})

	require.Len(t, results, 1)
	res := results[0]
	assert.NotEmpty(t, res.Content)
	assert.False(t, res.IsComplete)
	assert.Equal(t, 3, res.ChunkCount, "counts selected chunks, not the 5 stored")
	assert.Equal(t, res.ChunkCount, strings.Count(res.Content, core.ChunkSeparator)+1)
	sims := f.contentSims(res.Content)
	assert.InDeltaSlice(t, []float64{0.1, 0.08, 0.05}, sims, 1e-9)
	assert.InDelta(t, (0.1+0.08+0.05)/3, res.Similarity, 1e-4)
}

func TestRetrieve_FallbackAllChunks(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "weak", 0.05, 0.1)
	r := f.retriever(t, WithFallbackTopK(0))

	results := f.ask(t, r, "how do cells divide", core.Resource{ID: "weak", Name: "Weak"})

	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].ChunkCount)
	assert.False(t, results[0].IsComplete)
}

func TestRetrieve_CoverageWithoutLadder(t *testing.T) {
	tests := []struct {
		name    string
		bSims   []float64
		wantIDs []core.ResourceID
	}{
		{
			name:    "B scores above the coverage sentinel",
			bSims:   []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.1, 0.1, 0.1, 0.1, 0.1},
			wantIDs: []core.ResourceID{"b", "a"},
		},
		{
			name:    "B scores below the coverage sentinel",
			bSims:   []float64{0.35, 0.4, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1},
			wantIDs: []core.ResourceID{"a", "b"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.addResource(t, "a", spread(10, 0.05, 0.02)...)
			f.addResource(t, "b", tc.bSims...)
			r := f.retriever(t, WithFallbackLadder(false))

			results := f.ask(t, r, "what is mitosis",
				core.Resource{ID: "a", Name: "A"},
				core.Resource{ID: "b", Name: "B"})

			require.Len(t, results, 2)
			assert.Equal(t, tc.wantIDs, ids(results))
			for _, res := range results {
				switch res.ResourceID {
				case "a":
					assert.Equal(t, core.CoverageSimilarity, res.Similarity)
					assert.True(t, res.IsComplete)
					assert.Equal(t, allChunks("a", 10), res.Content)
				case "b":
					assert.False(t, res.IsComplete)
					for _, s := range f.contentSims(res.Content) {
						assert.Greater(t, s, 0.3)
					}
				}
			}
		})
	}
}

func TestRetrieve_LadderRepresentsWeakResource(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "a", spread(10, 0.05, 0.02)...)
	f.addResource(t, "b", 0.9, 0.9, 0.1)
	r := f.retriever(t)

	results := f.ask(t, r, "what is mitosis",
		core.Resource{ID: "a", Name: "A"},
		core.Resource{ID: "b", Name: "B"})

	require.Len(t, results, 2)
	assert.Equal(t, []core.ResourceID{"b", "a"}, ids(results))
	assert.False(t, results[1].IsComplete)
	assert.Equal(t, 3, results[1].ChunkCount)
}

func TestRetrieve_CoverageInvariant(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "a", spread(10, 0.01, 0.01)...)
	f.addResource(t, "b", spread(5, 0.5, 0.1)...)
	f.addResource(t, "c", 0.31)
	f.addResource(t, "d", 0.0)
	resources := []core.Resource{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	for _, ladder := range []bool{true, false} {
		r := f.retriever(t, WithFallbackLadder(ladder))
		for _, question := range []string{"how do cells divide", "summarize", "which enzyme"} {
			t.Run(fmt.Sprintf("ladder=%v/%s", ladder, question), func(t *testing.T) {
				results := f.ask(t, r, question, resources...)
				assert.ElementsMatch(t, []core.ResourceID{"a", "b", "c", "d"}, ids(results))
			})
		}
	}
}

func TestRetrieve_DuplicateResourcesCollapsed(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "r1", 0.9, 0.8)
	r := f.retriever(t)

	results := f.ask(t, r, "how do cells divide",
		core.Resource{ID: "r1", Name: "First"},
		core.Resource{ID: "r1", Name: "Second"})

	require.Len(t, results, 1)
	assert.Equal(t, "First", results[0].Name)
	// Still one resource, so single-resource limits apply
	assert.Equal(t, 2, results[0].ChunkCount)
}

func TestRetrieve_MissingResourceStaysAbsent(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "r1", 0.9)
	r := f.retriever(t)

	results := f.ask(t, r, "how do cells divide",
		core.Resource{ID: "r1", Name: "One"},
		core.Resource{ID: "ghost", Name: "Ghost"})

	assert.Equal(t, []core.ResourceID{"r1"}, ids(results))
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "r1", 0.9)
	boom := errors.New("rate limited")
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}
	r := f.retriever(t)

	_, err := r.Retrieve(context.Background(), "how do cells divide", []core.Resource{{ID: "r1", Name: "One"}})
	assert.ErrorIs(t, err, ai.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_DimensionMismatch(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "r1", 0.9, 0.5)
	f.embedder.SetVector("how do cells divide", []float32{1, 0, 0})
	r := f.retriever(t)

	_, err := r.Retrieve(context.Background(), "how do cells divide", []core.Resource{{ID: "r1", Name: "One"}})
	assert.ErrorIs(t, err, ai.ErrDimensionMismatch)
}

type failingRepository struct {
	storage.ChunkRepository
	err error
}

func (f failingRepository) GetChunksByResources(ctx context.Context, ids ...core.ResourceID) ([]*core.Chunk, error) {
	return nil, f.err
}

func TestRetrieve_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r, err := NewRetriever(failingRepository{err: boom}, mock.NewMockEmbedder(2))
	require.NoError(t, err)

	for _, question := range []string{"summarize", "how do cells divide"} {
		_, err := r.Retrieve(context.Background(), question, []core.Resource{{ID: "r1", Name: "One"}})
		assert.ErrorIs(t, err, ErrStoreLookup)
		assert.ErrorIs(t, err, boom)
	}
}

func TestRetrieve_CanceledContext(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "r1", 0.9)
	r := f.retriever(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Retrieve(ctx, "how do cells divide", []core.Resource{{ID: "r1", Name: "One"}})
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingMonitor struct {
	mu            sync.Mutex
	started       bool
	comprehensive bool
	scored        map[core.ResourceID]int
	fallbacks     []core.ResourceID
	covered       []core.ResourceID
	finished      []*core.ComparisonResult
	finishes      int
}

func (m *recordingMonitor) Start(_ string, _ []core.Resource) { m.started = true }
func (m *recordingMonitor) Classified(c bool)                 { m.comprehensive = c }
func (m *recordingMonitor) AfterChunkLookup(_ map[core.ResourceID][]*core.Chunk) {
}
func (m *recordingMonitor) ResourceScored(res core.Resource, selected, _ int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scored == nil {
		m.scored = make(map[core.ResourceID]int)
	}
	m.scored[res.ID] = selected
}
func (m *recordingMonitor) FallbackApplied(res core.Resource, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, res.ID)
}
func (m *recordingMonitor) CoverageApplied(added []*core.ComparisonResult) {
	m.covered = append(m.covered, ids(added)...)
}
func (m *recordingMonitor) Finish(results []*core.ComparisonResult) {
	m.finished = results
	m.finishes++
}

func TestRetrieveWithMonitor(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "strong", 0.9, 0.8)
	f.addResource(t, "weak", 0.1)
	resources := []core.Resource{{ID: "strong"}, {ID: "weak"}}

	t.Run("ladder", func(t *testing.T) {
		monitor := &recordingMonitor{}
		f.embedder.SetVector("which enzyme", queryVector)
		results, err := f.retriever(t).RetrieveWithMonitor(context.Background(), "which enzyme", resources, monitor)
		require.NoError(t, err)

		assert.True(t, monitor.started)
		assert.False(t, monitor.comprehensive)
		assert.Equal(t, map[core.ResourceID]int{"strong": 2, "weak": 1}, monitor.scored)
		assert.Equal(t, []core.ResourceID{"weak"}, monitor.fallbacks)
		assert.Empty(t, monitor.covered)
		assert.Equal(t, results, monitor.finished)
		assert.Equal(t, 1, monitor.finishes)
	})

	t.Run("coverage", func(t *testing.T) {
		monitor := &recordingMonitor{}
		f.embedder.SetVector("which enzyme", queryVector)
		_, err := f.retriever(t, WithFallbackLadder(false)).RetrieveWithMonitor(context.Background(), "which enzyme", resources, monitor)
		require.NoError(t, err)

		assert.Empty(t, monitor.fallbacks)
		assert.Equal(t, []core.ResourceID{"weak"}, monitor.covered)
	})
}

func TestRetrieveWithMonitor_Lifecycle(t *testing.T) {
	f := newFixture(t)
	f.addResource(t, "r1", 0.9)
	resources := []core.Resource{{ID: "r1", Name: "One"}}

	t.Run("invalid request never starts", func(t *testing.T) {
		monitor := &recordingMonitor{}
		_, err := f.retriever(t).RetrieveWithMonitor(context.Background(), "  ", resources, monitor)
		assert.ErrorIs(t, err, core.ErrEmptyQuestion)
		assert.False(t, monitor.started)
		assert.Zero(t, monitor.finishes)
	})

	t.Run("provider failure finishes once", func(t *testing.T) {
		monitor := &recordingMonitor{}
		f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("provider down")
		}
		defer func() { f.embedder.EmbedTextFunc = nil }()

		_, err := f.retriever(t).RetrieveWithMonitor(context.Background(), "which enzyme", resources, monitor)
		assert.ErrorIs(t, err, ai.ErrEmbeddingProvider)
		assert.True(t, monitor.started)
		assert.Equal(t, 1, monitor.finishes)
		assert.Nil(t, monitor.finished)
	})

	t.Run("no resources finishes once", func(t *testing.T) {
		monitor := &recordingMonitor{}
		results, err := f.retriever(t).RetrieveWithMonitor(context.Background(), "", nil, monitor)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.True(t, monitor.started)
		assert.Equal(t, 1, monitor.finishes)
	})
}
