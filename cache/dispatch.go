package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// dispatcher delivers notifications on a single goroutine, in the order they
// were posted. Posting never blocks.
type dispatcher struct {
	logger  *slog.Logger
	mu      sync.Mutex
	queue   []func()
	closing bool
	wake    chan struct{}
	done    chan struct{}
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closing := d.closing
		d.mu.Unlock()

		for _, fn := range batch {
			d.call(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closing {
			return
		}
		<-d.wake
	}
}

func (d *dispatcher) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("hook panicked", "error", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

// flush waits until everything posted before it has been delivered
func (d *dispatcher) flush(ctx context.Context) error {
	reached := make(chan struct{})
	d.post(func() { close(reached) })

	select {
	case <-reached:
		return nil
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close delivers what is queued and stops the goroutine
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return
	}
	d.closing = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}
