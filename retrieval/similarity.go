package retrieval

import "math"

// Similarity returns the cosine similarity of a and b, clamped to [0, 1].
// Vectors of different length, empty vectors, vectors containing NaN or Inf
// and zero-magnitude vectors all score exactly 0.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		if !finite(x) || !finite(y) {
			return 0
		}
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case !finite(sim), sim <= 0:
		return 0
	case sim > 1:
		// Rounding can push parallel vectors slightly past 1
		return 1
	}
	return sim
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
