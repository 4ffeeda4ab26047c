package embeddings

import (
	"context"
	"errors"
	"time"
)

// Instrumented wraps a Provider with Prometheus timing and result
// counters, recorded around the underlying call rather than inside it.
type Instrumented struct {
	Provider
}

// NewInstrumented wraps p so every Embed/EmbedBatch call is timed and
// counted by result (ok, invalid_input, dimension_mismatch, rate_limited,
// auth_failure, network, unavailable, error).
func NewInstrumented(p Provider) *Instrumented {
	return &Instrumented{Provider: p}
}

func (i *Instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := i.Provider.Embed(ctx, text)
	generationDuration.Observe(time.Since(start).Seconds())
	recordResult(resultLabel(err))
	return vec, err
}

func (i *Instrumented) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Provider.EmbedBatch(ctx, texts)
	generationDuration.Observe(time.Since(start).Seconds())
	batchSize.Observe(float64(len(texts)))
	recordResult(resultLabel(err))
	return vecs, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAuthFailure):
		return "auth_failure"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
