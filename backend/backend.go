// Package backend defines the result backends a paged cache fetches from.
package backend

import (
	"context"
	"errors"

	"github.com/deeplooplabs/pagedcache"
)

var (
	// ErrNotFound is returned when the backend does not know the query scope
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when a fetch was refused by a rate limiter
	ErrRateLimited = errors.New("rate limited")
)

// Page is one batch of results
type Page[T any] struct {
	Items []T `json:"items"`
	// Total is the size of the full result set
	Total int `json:"total"`
}

// Backend answers page requests for a query. Pages for the same query must be
// returned in a stable order, with a consistent Total, and never more than
// Total-offset items.
type Backend[T any] interface {
	// Name returns the backend name
	Name() string
	// Fetch returns at most limit items starting at offset
	Fetch(ctx context.Context, q *pagedcache.Query, offset, limit int) (*Page[T], error)
}

// Func adapts a function to the Backend interface
type Func[T any] func(ctx context.Context, q *pagedcache.Query, offset, limit int) (*Page[T], error)

// Name returns the backend name
func (f Func[T]) Name() string {
	return "func"
}

// Fetch calls f
func (f Func[T]) Fetch(ctx context.Context, q *pagedcache.Query, offset, limit int) (*Page[T], error) {
	return f(ctx, q, offset, limit)
}
