package hook

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deeplooplabs/pagedcache"
)

// Hook is the base interface for all hooks
type Hook interface {
	// Name returns the unique name of this hook
	Name() string
}

// Fetch describes a completed backend fetch
type Fetch struct {
	Query  *pagedcache.Query
	Offset int
	Limit  int
	// Count is the number of items applied to the window
	Count int
	// Stale is set when the response belonged to an abandoned query and was dropped
	Stale bool
	// Superseded is set when a pushed page for the same query was applied in
	// place of this response, which was then dropped
	Superseded bool
	Err      error
	Duration time.Duration
}

// First reports whether this was the first batch of its query
func (f Fetch) First() bool {
	return f.Offset == 0
}

// TotalCountHook is called when the total count changes
type TotalCountHook interface {
	Hook
	OnTotalCountChanged(q *pagedcache.Query, total int)
}

// FetchFailedHook is called when a fetch fails or the backend violates its contract
type FetchFailedHook interface {
	Hook
	OnFetchFailed(q *pagedcache.Query, offset int, err error)
}

// QueryHook is called when the active query is replaced
type QueryHook interface {
	Hook
	OnQueryChanged(q *pagedcache.Query)
}

// BatchSizeHook is called when the batch size changes
type BatchSizeHook interface {
	Hook
	OnBatchSizeChanged(n int)
}

// ItemsHook is called when items [first, last] were appended to the window
type ItemsHook interface {
	Hook
	OnItemsInserted(q *pagedcache.Query, first, last int)
}

// StatusHook is called when the fetch status changes
type StatusHook interface {
	Hook
	OnStatusChanged(status pagedcache.Status)
}

// FetchHook is called for every fetch completion, including dropped stale responses
type FetchHook interface {
	Hook
	OnFetchFinished(f Fetch)
}

// Registry manages registered hooks
type Registry struct {
	mu              sync.RWMutex
	hooks           []Hook
	totalCountHooks []TotalCountHook
	failedHooks     []FetchFailedHook
	queryHooks      []QueryHook
	batchSizeHooks  []BatchSizeHook
	itemsHooks      []ItemsHook
	statusHooks     []StatusHook
	fetchHooks      []FetchHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register registers hooks in every list whose interface they implement
func (r *Registry) Register(hooks ...Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, hook := range hooks {
		r.hooks = append(r.hooks, hook)

		known := false
		if h, ok := hook.(TotalCountHook); ok {
			r.totalCountHooks = append(r.totalCountHooks, h)
			known = true
		}
		if h, ok := hook.(FetchFailedHook); ok {
			r.failedHooks = append(r.failedHooks, h)
			known = true
		}
		if h, ok := hook.(QueryHook); ok {
			r.queryHooks = append(r.queryHooks, h)
			known = true
		}
		if h, ok := hook.(BatchSizeHook); ok {
			r.batchSizeHooks = append(r.batchSizeHooks, h)
			known = true
		}
		if h, ok := hook.(ItemsHook); ok {
			r.itemsHooks = append(r.itemsHooks, h)
			known = true
		}
		if h, ok := hook.(StatusHook); ok {
			r.statusHooks = append(r.statusHooks, h)
			known = true
		}
		if h, ok := hook.(FetchHook); ok {
			r.fetchHooks = append(r.fetchHooks, h)
			known = true
		}
		if !known {
			slog.Warn(fmt.Sprintf("unknown hook type: %T", hook))
		}
	}
}

// All returns all registered hooks
func (r *Registry) All() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hook(nil), r.hooks...)
}

// TotalCountChanged notifies all total count hooks
func (r *Registry) TotalCountChanged(q *pagedcache.Query, total int) {
	r.mu.RLock()
	hooks := r.totalCountHooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h.OnTotalCountChanged(q, total)
	}
}

// FetchFailed notifies all fetch failure hooks
func (r *Registry) FetchFailed(q *pagedcache.Query, offset int, err error) {
	r.mu.RLock()
	hooks := r.failedHooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h.OnFetchFailed(q, offset, err)
	}
}

// QueryChanged notifies all query hooks
func (r *Registry) QueryChanged(q *pagedcache.Query) {
	r.mu.RLock()
	hooks := r.queryHooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h.OnQueryChanged(q)
	}
}

// BatchSizeChanged notifies all batch size hooks
func (r *Registry) BatchSizeChanged(n int) {
	r.mu.RLock()
	hooks := r.batchSizeHooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h.OnBatchSizeChanged(n)
	}
}

// ItemsInserted notifies all items hooks
func (r *Registry) ItemsInserted(q *pagedcache.Query, first, last int) {
	r.mu.RLock()
	hooks := r.itemsHooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h.OnItemsInserted(q, first, last)
	}
}

// StatusChanged notifies all status hooks
func (r *Registry) StatusChanged(status pagedcache.Status) {
	r.mu.RLock()
	hooks := r.statusHooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h.OnStatusChanged(status)
	}
}

// FetchFinished notifies all fetch hooks
func (r *Registry) FetchFinished(f Fetch) {
	r.mu.RLock()
	hooks := r.fetchHooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h.OnFetchFinished(f)
	}
}
