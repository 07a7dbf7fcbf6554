// Package cache implements a paged result cache: it loads a query's result
// set from a backend in batch-sized, contiguous pages as a consumer asks for
// items, and reports changes through hooks.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/hook"
)

var (
	ErrClosed         = errors.New("cache has been closed and is unusable")
	ErrInvalidContext = errors.New("context has already ended")
	ErrNilBackend     = errors.New("backend must not be nil")
)

// Config holds paged cache configuration
type Config struct {
	// BatchSize is the number of items requested per fetch (default: 1)
	BatchSize int

	// FetchTimeout bounds each backend fetch, zero disables it (default: 30s)
	FetchTimeout time.Duration
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		BatchSize:    1,
		FetchTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return pagedcache.NewConfigurationError(fmt.Sprintf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.FetchTimeout < 0 {
		return pagedcache.NewConfigurationError("fetch timeout must not be negative")
	}
	return nil
}

// Stats represents cache statistics
type Stats struct {
	Fetches        uint64
	StaleResponses uint64
	Failures       uint64
	Items          int
	TotalCount     int
}

type options struct {
	config *Config
	hooks  *hook.Registry
	logger *slog.Logger
}

// Option configures a Cache
type Option func(*options)

// WithConfig sets the cache configuration
func WithConfig(config *Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithBatchSize sets the initial batch size
func WithBatchSize(n int) Option {
	return func(o *options) {
		c := *o.config
		c.BatchSize = n
		o.config = &c
	}
}

// WithHooks sets the hook registry
func WithHooks(hooks *hook.Registry) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithHook registers hooks
func WithHook(hooks ...hook.Hook) Option {
	return func(o *options) {
		o.hooks.Register(hooks...)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
