package embed

import (
	"context"
	"fmt"

	"github.com/bookbodh/bookbodh/engine/domain"
	"github.com/bookbodh/bookbodh/pkg/resilience"
)

// Guarded wraps an Embedder behind a circuit breaker. Any failure of the
// underlying client, and any call rejected by an open breaker, surfaces as
// domain.ErrEncoderUnavailable so callers never mistake an outage for
// "no results".
type Guarded struct {
	inner   Embedder
	breaker *resilience.Breaker
}

// Guard wraps an embedder with a circuit breaker.
func Guard(inner Embedder, opts resilience.BreakerOpts) *Guarded {
	return &Guarded{inner: inner, breaker: resilience.NewBreaker(opts)}
}

// Embed implements Embedder.
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = g.inner.Embed(ctx, text)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %v: %w", err, domain.ErrEncoderUnavailable)
	}
	return out, nil
}

// EmbedBatch implements Embedder.
func (g *Guarded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = g.inner.EmbedBatch(ctx, texts)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed batch: %v: %w", err, domain.ErrEncoderUnavailable)
	}
	return out, nil
}

// State exposes the breaker state for health reporting.
func (g *Guarded) State() resilience.State { return g.breaker.State() }
