package backend

import (
	"context"
	"sync"
	"time"

	"github.com/deeplooplabs/pagedcache"
)

// Call records one Fetch on a Memory backend
type Call struct {
	Query  *pagedcache.Query
	Offset int
	Limit  int
}

// Memory serves pages from an in-memory slice
type Memory[T any] struct {
	mu    sync.Mutex
	name  string
	items []T
	match func(q *pagedcache.Query, item T) bool
	delay time.Duration
	err   error
	calls []Call
}

// NewMemory creates a memory backend over items. Every query matches every item
// unless a match function is set.
func NewMemory[T any](items []T) *Memory[T] {
	return &Memory[T]{
		name:  "memory",
		items: items,
	}
}

// WithName sets the backend name
func (m *Memory[T]) WithName(name string) *Memory[T] {
	m.name = name
	return m
}

// WithMatch filters items per query
func (m *Memory[T]) WithMatch(match func(q *pagedcache.Query, item T) bool) *Memory[T] {
	m.match = match
	return m
}

// WithDelay delays every fetch
func (m *Memory[T]) WithDelay(d time.Duration) *Memory[T] {
	m.delay = d
	return m
}

// SetError makes every following fetch fail with err, nil clears it
func (m *Memory[T]) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the fetches made so far
func (m *Memory[T]) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Name returns the backend name
func (m *Memory[T]) Name() string {
	return m.name
}

// Fetch implements Backend.Fetch
func (m *Memory[T]) Fetch(ctx context.Context, q *pagedcache.Query, offset, limit int) (*Page[T], error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Query: q, Offset: offset, Limit: limit})
	delay, err := m.delay, m.err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matched := m.items
	if m.match != nil {
		matched = make([]T, 0, len(m.items))
		for _, item := range m.items {
			if m.match(q, item) {
				matched = append(matched, item)
			}
		}
	}

	page := &Page[T]{Total: len(matched)}
	if offset < len(matched) && limit > 0 {
		end := min(offset+limit, len(matched))
		page.Items = append([]T(nil), matched[offset:end]...)
	}
	return page, nil
}

var _ Backend[any] = (*Memory[any])(nil)
