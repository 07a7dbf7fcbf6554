package backend

import (
	"context"
	"fmt"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/ratelimit"
)

// RateLimited throttles fetches to the wrapped backend
type RateLimited[T any] struct {
	next    Backend[T]
	limiter ratelimit.Limiter
	// wait blocks for a token instead of refusing the fetch
	wait bool
}

// NewRateLimited wraps next with limiter. When wait is false a fetch without
// an available token fails with ErrRateLimited.
func NewRateLimited[T any](next Backend[T], limiter ratelimit.Limiter, wait bool) *RateLimited[T] {
	return &RateLimited[T]{
		next:    next,
		limiter: limiter,
		wait:    wait,
	}
}

// Name returns the wrapped backend name
func (r *RateLimited[T]) Name() string {
	return r.next.Name()
}

// Fetch implements Backend.Fetch
func (r *RateLimited[T]) Fetch(ctx context.Context, q *pagedcache.Query, offset, limit int) (*Page[T], error) {
	if r.wait {
		if err := r.limiter.Wait(ctx, r.next.Name()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	} else if !r.limiter.Allow(ctx, r.next.Name()) {
		return nil, ErrRateLimited
	}
	return r.next.Fetch(ctx, q, offset, limit)
}
