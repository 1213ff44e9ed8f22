package retrieval

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Limits bounds the chunks selected from one resource on the targeted path.
type Limits struct {
	MaxChunks     int     // Most chunks kept per resource
	MinSimilarity float64 // Chunks must score strictly above this
}

// Default selection limits.
var (
	DefaultSingleResourceLimits = Limits{MaxChunks: 15, MinSimilarity: 0.2}
	DefaultMultiResourceLimits  = Limits{MaxChunks: 8, MinSimilarity: 0.3}
)

// DefaultFallbackTopK is the number of best chunks kept for a resource with
// no chunk above the threshold.
const DefaultFallbackTopK = 3

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default() tagged with the retriever component.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithSingleResourceLimits sets the limits used when one resource is requested.
func WithSingleResourceLimits(maxChunks int, minSimilarity float64) Option {
	return func(r *Retriever) error {
		limits, err := newLimits(maxChunks, minSimilarity)
		if err != nil {
			return err
		}
		r.single = limits
		return nil
	}
}

// WithMultiResourceLimits sets the limits used when several resources are requested.
func WithMultiResourceLimits(maxChunks int, minSimilarity float64) Option {
	return func(r *Retriever) error {
		limits, err := newLimits(maxChunks, minSimilarity)
		if err != nil {
			return err
		}
		r.multi = limits
		return nil
	}
}

// WithFallbackTopK sets how many best chunks the first fallback rung keeps.
// Zero skips straight to the all-chunks rung.
func WithFallbackTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 0 {
			return fmt.Errorf("%w: fallback top-k %d is negative", ErrInvalidLimits, k)
		}
		r.fallbackTopK = k
		return nil
	}
}

// WithFallbackLadder enables or disables the fallback ladder.
// When disabled, a resource with no chunk above the threshold is left for
// EnsureCoverage to add in full. Enabled by default.
func WithFallbackLadder(enabled bool) Option {
	return func(r *Retriever) error {
		r.fallbackLadder = enabled
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer used for retrieval spans.
// Default is the tracer of the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Retriever) error {
		if tracer != nil {
			r.tracer = tracer
		}
		return nil
	}
}

func newLimits(maxChunks int, minSimilarity float64) (Limits, error) {
	if maxChunks <= 0 {
		return Limits{}, fmt.Errorf("%w: max chunks must be positive, got %d", ErrInvalidLimits, maxChunks)
	}
	if minSimilarity < 0 || minSimilarity >= 1 {
		return Limits{}, fmt.Errorf("%w: min similarity must be in [0,1), got %g", ErrInvalidLimits, minSimilarity)
	}
	return Limits{MaxChunks: maxChunks, MinSimilarity: minSimilarity}, nil
}
