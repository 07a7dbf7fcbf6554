package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/backend"
	"github.com/deeplooplabs/pagedcache/hook"
)

const (
	oTELFetchStarted = "PagedCache.fetch started"
	oTELFetchEnded   = "PagedCache.fetch ended"
	oTELFetchError   = "PagedCache.fetch error"
)

// request is one dispatched fetch. A completion is only applied while its
// request is still the cache's in-flight request.
type request struct {
	query  *pagedcache.Query
	offset int
	limit  int
	start  time.Time
	// superseded is set when a pushed page took this request's place
	superseded bool
}

// Cache holds the loaded prefix of the active query's result set.
//
// All state changes are serialized by one mutex. Backend fetches run on their
// own goroutine, at most one at a time, and report back through the same
// lock. Hooks are called on a separate goroutine, after the state change they
// describe is visible, in the order the changes happened.
type Cache[T any] struct {
	backend backend.Backend[T]
	config  *Config
	hooks   *hook.Registry
	logger  *slog.Logger
	events  *dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	query     *pagedcache.Query
	batchSize int
	window    []T
	total     int
	status    pagedcache.Status
	inflight  *request
	// demand is the highest index asked for that is not loaded yet, -1 for none
	demand int
	closed bool

	fetches  atomic.Uint64
	stale    atomic.Uint64
	failures atomic.Uint64
}

// New creates a cache fetching from b. The cache stops fetching when ctx ends
// or Close is called.
func New[T any](ctx context.Context, b backend.Backend[T], opts ...Option) (*Cache[T], error) {
	select {
	case <-ctx.Done():
		return nil, ErrInvalidContext
	default:
	}

	if b == nil {
		return nil, ErrNilBackend
	}

	o := &options{
		config: DefaultConfig(),
		hooks:  hook.NewRegistry(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger.With("component", "pagedcache", "backend", b.Name())
	ctx, cancel := context.WithCancel(ctx)

	return &Cache[T]{
		backend:   b,
		config:    o.config,
		hooks:     o.hooks,
		logger:    logger,
		events:    newDispatcher(logger),
		ctx:       ctx,
		cancel:    cancel,
		batchSize: o.config.BatchSize,
		total:     -1,
		demand:    -1,
	}, nil
}

// Hooks returns the hook registry
func (c *Cache[T]) Hooks() *hook.Registry {
	return c.hooks
}

// SetQuery replaces the active query. The window is cleared and the total
// reset to -1 immediately; a non-nil query starts fetching its first batch.
// A fetch still in flight for the previous query is ignored when it returns.
func (c *Cache[T]) SetQuery(q *pagedcache.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || q == c.query {
		return
	}

	hadTotal := c.total >= 0
	c.query = q
	c.window = nil
	c.total = -1
	c.demand = -1
	c.inflight = nil

	c.emit(func() { c.hooks.QueryChanged(q) })
	if hadTotal {
		c.emit(func() { c.hooks.TotalCountChanged(q, -1) })
	}

	if q == nil {
		c.setStatus(pagedcache.Idle)
		return
	}
	c.dispatch(0, c.batchSize, pagedcache.FetchingFirst)
}

// Reset clears the query and all loaded items
func (c *Cache[T]) Reset() {
	c.SetQuery(nil)
}

// SetBatchSize sets the number of items requested by the next fetch
func (c *Cache[T]) SetBatchSize(n int) error {
	if n <= 0 {
		return pagedcache.NewConfigurationError(fmt.Sprintf("batch size must be positive, got %d", n))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if n == c.batchSize {
		return nil
	}
	c.batchSize = n
	c.emit(func() { c.hooks.BatchSizeChanged(n) })
	return nil
}

// EnsureLoaded asks for the window to cover index. It never blocks: missing
// items are fetched in the background, one batch at a time, until the index
// is loaded or the result set is exhausted.
func (c *Cache[T]) EnsureLoaded(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.query == nil || index < len(c.window) {
		return
	}
	if c.total >= 0 && len(c.window) >= c.total {
		return
	}

	if index > c.demand {
		c.demand = index
	}
	if c.status.Fetching() {
		return
	}

	// the first batch failed earlier, start over
	if c.total < 0 {
		c.dispatch(0, c.batchSize, pagedcache.FetchingFirst)
		return
	}
	c.dispatchMore()
}

// OnBatchArrived applies a page pushed by a backend for query q. Pages for a
// query other than the active one are dropped.
func (c *Cache[T]) OnBatchArrived(q *pagedcache.Query, offset int, items []T, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if q == nil || q != c.query {
		c.discard(&request{query: q, offset: offset, limit: len(items), start: time.Now()})
		return
	}

	// the pushed page replaces whatever fetch is in flight for this query;
	// its response is dropped when it returns
	req := &request{query: q, offset: offset, limit: len(items), start: time.Now()}
	if in := c.inflight; in != nil {
		in.superseded = true
		if in.offset == offset {
			req.limit, req.start = in.limit, in.start
		}
	}

	c.inflight = nil
	c.apply(req, items, total)
}

// Item returns the item at index
func (c *Cache[T]) Item(index int) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index < 0 || index >= len(c.window) {
		var zero T
		return zero, pagedcache.NewIndexOutOfRange(index, len(c.window))
	}
	return c.window[index], nil
}

// Items returns a copy of the loaded items
func (c *Cache[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.window...)
}

// Len returns the number of loaded items
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.window)
}

// TotalCount returns the declared size of the result set, -1 while unknown
func (c *Cache[T]) TotalCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Query returns the active query
func (c *Cache[T]) Query() *pagedcache.Query {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

// BatchSize returns the batch size used by the next fetch
func (c *Cache[T]) BatchSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batchSize
}

// Status returns the fetch status
func (c *Cache[T]) Status() pagedcache.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// CanFetchMore reports whether there is an active query with items left to load
func (c *Cache[T]) CanFetchMore() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.query == nil {
		return false
	}
	return c.total < 0 || len(c.window) < c.total
}

// Stats returns cache statistics
func (c *Cache[T]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Fetches:        c.fetches.Load(),
		StaleResponses: c.stale.Load(),
		Failures:       c.failures.Load(),
		Items:          len(c.window),
		TotalCount:     c.total,
	}
}

// Flush waits until every notification caused by earlier calls has been
// delivered to the hooks. It must not be called from a hook.
func (c *Cache[T]) Flush(ctx context.Context) error {
	return c.events.flush(ctx)
}

// Close stops the cache. Queued notifications are still delivered; fetches
// still in flight are ignored.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.inflight = nil
	c.mu.Unlock()

	c.cancel()
	c.events.close()
}

// emit queues a notification; callers hold c.mu so the queue order matches
// the order of state changes
func (c *Cache[T]) emit(fn func()) {
	c.events.post(fn)
}

func (c *Cache[T]) setStatus(s pagedcache.Status) {
	if s == c.status {
		return
	}
	c.status = s
	c.emit(func() { c.hooks.StatusChanged(s) })
}

func (c *Cache[T]) dispatchMore() {
	offset := len(c.window)
	c.dispatch(offset, min(c.batchSize, c.total-offset), pagedcache.FetchingMore)
}

func (c *Cache[T]) dispatch(offset, limit int, status pagedcache.Status) {
	req := &request{
		query:  c.query,
		offset: offset,
		limit:  limit,
		start:  time.Now(),
	}
	c.inflight = req
	c.fetches.Add(1)
	c.setStatus(status)

	c.logger.Debug("dispatching fetch", "query", req.query, "offset", offset, "limit", limit)
	go c.run(req)
}

func (c *Cache[T]) run(req *request) {
	ctx := c.ctx
	if c.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()
	}

	span := trace.SpanFromContext(ctx)
	span.AddEvent(oTELFetchStarted, trace.WithAttributes(
		attribute.String("Query", req.query.ID),
		attribute.Int("Offset", req.offset),
		attribute.Int("Limit", req.limit),
	), trace.WithTimestamp(time.Now().UTC()))

	page, err := c.fetch(ctx, req)
	if err != nil {
		span.AddEvent(oTELFetchError, trace.WithTimestamp(time.Now().UTC()))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.AddEvent(oTELFetchEnded, trace.WithAttributes(
			attribute.Int("Retrieved", len(page.Items)),
			attribute.Int("Total", page.Total),
		), trace.WithTimestamp(time.Now().UTC()))
	}

	c.complete(req, page, err)
}

// fetch calls the backend, converting panics to errors
func (c *Cache[T]) fetch(ctx context.Context, req *request) (page *backend.Page[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			page, err = nil, fmt.Errorf("unexpected error: %v", r)
		}
	}()

	page, err = c.backend.Fetch(ctx, req.query, req.offset, req.limit)
	if err == nil && page == nil {
		err = errors.New("backend returned no page")
	}
	return page, err
}

func (c *Cache[T]) complete(req *request, page *backend.Page[T], err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if req.superseded && req.query == c.query {
		c.supersede(req)
		return
	}
	if req != c.inflight {
		c.discard(req)
		return
	}
	c.inflight = nil

	if err != nil {
		c.fail(req, pagedcache.AsError(req.query, req.offset, err))
		return
	}
	c.apply(req, page.Items, page.Total)
}

func (c *Cache[T]) apply(req *request, items []T, total int) {
	q := req.query
	loaded := len(c.window)

	if req.offset != loaded {
		c.fail(req, pagedcache.NewOrderingError(q, req.offset, loaded))
		return
	}
	end := req.offset + len(items)
	if end > total || (c.total >= 0 && end > c.total) {
		declared := total
		if c.total >= 0 && c.total < declared {
			declared = c.total
		}
		c.fail(req, pagedcache.NewOverfetchError(q, req.offset, len(items), declared))
		return
	}

	if c.total < 0 {
		c.total = total
		c.emit(func() { c.hooks.TotalCountChanged(q, total) })
	}

	c.window = append(c.window, items...)
	if len(items) > 0 {
		first, last := loaded, len(c.window)-1
		c.emit(func() { c.hooks.ItemsInserted(q, first, last) })
	}

	f := hook.Fetch{
		Query:    q,
		Offset:   req.offset,
		Limit:    req.limit,
		Count:    len(items),
		Duration: time.Since(req.start),
	}
	c.emit(func() { c.hooks.FetchFinished(f) })

	// keep going while a consumer is waiting for an unloaded index; an empty
	// page short of the total means the backend has nothing more to give
	if c.demand >= len(c.window) && len(c.window) < c.total && len(items) > 0 {
		c.dispatchMore()
		return
	}
	c.demand = -1
	c.setStatus(pagedcache.Idle)
}

func (c *Cache[T]) fail(req *request, err *pagedcache.Error) {
	c.failures.Add(1)
	c.demand = -1

	c.logger.Warn("fetch failed",
		"query", req.query,
		"offset", req.offset,
		"error", err,
	)

	q, offset := req.query, req.offset
	f := hook.Fetch{
		Query:    q,
		Offset:   offset,
		Limit:    req.limit,
		Err:      err,
		Duration: time.Since(req.start),
	}
	c.emit(func() { c.hooks.FetchFailed(q, offset, err) })
	c.emit(func() { c.hooks.FetchFinished(f) })
	c.setStatus(pagedcache.Idle)
}

func (c *Cache[T]) discard(req *request) {
	c.stale.Add(1)
	c.logger.Debug("dropping stale response", "query", req.query, "offset", req.offset)

	f := hook.Fetch{
		Query:    req.query,
		Offset:   req.offset,
		Limit:    req.limit,
		Stale:    true,
		Duration: time.Since(req.start),
	}
	c.emit(func() { c.hooks.FetchFinished(f) })
}

func (c *Cache[T]) supersede(req *request) {
	c.logger.Debug("dropping superseded response", "query", req.query, "offset", req.offset)

	f := hook.Fetch{
		Query:      req.query,
		Offset:     req.offset,
		Limit:      req.limit,
		Superseded: true,
		Duration:   time.Since(req.start),
	}
	c.emit(func() { c.hooks.FetchFinished(f) })
}
