package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/backend"
	"github.com/deeplooplabs/pagedcache/cache"
	"github.com/deeplooplabs/pagedcache/hook"
)

func newScrollCache(t *testing.T, b backend.Backend[Place], batchSize int) (*cache.Cache[Place], *scroller) {
	t.Helper()
	hooks := hook.NewRegistry()
	s := newScroller(hooks)
	c, err := cache.New[Place](context.Background(), b, cache.WithHooks(hooks), cache.WithBatchSize(batchSize))
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c, s
}

func TestScroller_LoadsAll(t *testing.T) {
	c, s := newScrollCache(t, backend.NewMemory(demoPlaces).WithMatch(matchPlace), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.SetQuery(pagedcache.NewQuery("coffee"))
	if err := s.run(ctx, c, 100); err != nil {
		t.Fatalf("run: %v", err)
	}
	if c.Len() != 9 || c.TotalCount() != 9 {
		t.Errorf("expected 9 of 9 places, got %d of %d", c.Len(), c.TotalCount())
	}
}

func TestScroller_StopsAtMax(t *testing.T) {
	c, s := newScrollCache(t, backend.NewMemory(demoPlaces), 4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.SetQuery(pagedcache.NewQuery(""))
	if err := s.run(ctx, c, 5); err != nil {
		t.Fatalf("run: %v", err)
	}
	if c.Len() != 8 {
		t.Errorf("expected 8 places, got %d", c.Len())
	}
}

func TestScroller_StopsOnEmptyPage(t *testing.T) {
	var calls atomic.Int32
	b := backend.Func[Place](func(ctx context.Context, q *pagedcache.Query, offset, limit int) (*backend.Page[Place], error) {
		calls.Add(1)
		// declares 10 results but has nothing past the first page
		if offset == 0 {
			return &backend.Page[Place]{Items: demoPlaces[:2], Total: 10}, nil
		}
		return &backend.Page[Place]{Total: 10}, nil
	})
	c, s := newScrollCache(t, b, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.SetQuery(pagedcache.NewQuery("coffee"))
	if err := s.run(ctx, c, 100); err != nil {
		t.Fatalf("run did not stop: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 places, got %d", c.Len())
	}
}

func TestScroller_StopsOnFailure(t *testing.T) {
	mem := backend.NewMemory(demoPlaces)
	mem.SetError(backend.ErrNotFound)
	c, s := newScrollCache(t, mem, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.SetQuery(pagedcache.NewQuery("coffee"))
	if err := s.run(ctx, c, 100); err != nil {
		t.Fatalf("run did not stop: %v", err)
	}
	if len(mem.Calls()) != 1 {
		t.Errorf("expected a single fetch, got %d", len(mem.Calls()))
	}
}
