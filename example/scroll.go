package main

import (
	"context"
	"sync/atomic"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/cache"
	"github.com/deeplooplabs/pagedcache/hook"
)

// scroller loads a query's results batch by batch, the way a list view
// scrolled to its end would
type scroller struct {
	idle   chan struct{}
	failed atomic.Bool
}

func newScroller(hooks *hook.Registry) *scroller {
	s := &scroller{idle: make(chan struct{}, 1)}
	hooks.Register(&hook.Funcs{
		HookName: "scroller",
		StatusChanged: func(status pagedcache.Status) {
			if status == pagedcache.Idle {
				select {
				case s.idle <- struct{}{}:
				default:
				}
			}
		},
		FetchFailed: func(q *pagedcache.Query, offset int, err error) {
			s.failed.Store(true)
		},
	})
	return s
}

// run waits for the active query's first batch, then asks for one more batch
// each time the cache goes idle. It stops on a failure, at the end of the
// result set, after maxItems, or when a batch added nothing.
func (s *scroller) run(ctx context.Context, c *cache.Cache[Place], maxItems int) error {
	loaded := -1
	for {
		select {
		case <-s.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
		n := c.Len()
		if s.failed.Load() || !c.CanFetchMore() || n >= maxItems || n == loaded {
			return nil
		}
		loaded = n
		c.EnsureLoaded(n + c.BatchSize() - 1)
	}
}
