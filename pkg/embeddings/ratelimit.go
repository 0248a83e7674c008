package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to a wrapped Embedder. Waiting for a token
// honors the caller's context, so an abandoned request never blocks.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with limiter. A nil limiter returns inner unchanged.
func NewRateLimited(inner Embedder, limiter *rate.Limiter) Embedder {
	if limiter == nil {
		return inner
	}
	return &RateLimited{inner: inner, limiter: limiter}
}

// Embed waits for a token and then delegates to the wrapped embedder.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
	}
	return r.inner.Embed(ctx, text)
}

// Close closes the wrapped embedder.
func (r *RateLimited) Close() error {
	return r.inner.Close()
}
