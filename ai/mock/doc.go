// Package mock provides test doubles for ai.Embedder and ai.AIProvider.
//
// The mocks run without any embedding service and produce deterministic
// vectors, so retrieval and ingestion can be tested end to end.
//
// # Usage in Tests
//
//	// Hash-derived vectors of the requested dimension
//	embedder := mock.NewMockEmbedder(8)
//
//	// Fixed vectors for known texts
//	embedder.SetVector("what is the refund policy?", []float32{1, 0, 0})
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
