// Package ratelimit throttles fetches sent to a result backend.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles backend fetches per key (usually the backend name)
type Limiter interface {
	// Allow reports whether one fetch may be sent now, consuming a token if so
	Allow(ctx context.Context, key string) bool

	// AllowN reports whether n fetches may be sent now
	AllowN(ctx context.Context, key string, n int) bool

	// Wait blocks until a token is available or ctx is done
	Wait(ctx context.Context, key string) error

	// Reset forgets the bucket for the given key
	Reset(ctx context.Context, key string)
}

// Config holds rate limiter configuration
type Config struct {
	// FetchesPerSecond is the sustained fetch rate (default: 20)
	FetchesPerSecond float64

	// Burst is the number of fetches allowed back to back (default: 10)
	Burst int

	// Enabled indicates whether rate limiting is enabled
	Enabled bool
}

// DefaultConfig returns a default rate limiter configuration
func DefaultConfig() *Config {
	return &Config{
		FetchesPerSecond: 20,
		Burst:            10,
		Enabled:          true,
	}
}

const (
	cleanupInterval = 5 * time.Minute
	idleThreshold   = 10 * time.Minute
)

type tokenBucket struct {
	mu          sync.Mutex
	config      *Config
	buckets     map[string]*bucket
	lastCleanup time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(config *Config) Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &tokenBucket{
		config:      config,
		buckets:     make(map[string]*bucket),
		lastCleanup: time.Now(),
	}
}

func (tb *tokenBucket) Allow(ctx context.Context, key string) bool {
	return tb.AllowN(ctx, key, 1)
}

func (tb *tokenBucket) AllowN(ctx context.Context, key string, n int) bool {
	ok, _ := tb.take(key, n)
	return ok
}

func (tb *tokenBucket) Wait(ctx context.Context, key string) error {
	for {
		ok, wait := tb.take(key, 1)
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// take consumes n tokens if available, otherwise returns how long until they are
func (tb *tokenBucket) take(key string, n int) (bool, time.Duration) {
	if !tb.config.Enabled {
		return true, 0
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if now.Sub(tb.lastCleanup) > cleanupInterval {
		tb.cleanup(now)
	}

	b, exists := tb.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(tb.config.Burst), lastRefill: now}
		tb.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.tokens+elapsed*tb.config.FetchesPerSecond, float64(tb.config.Burst))
	b.lastRefill = now

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true, 0
	}
	if tb.config.FetchesPerSecond <= 0 {
		return false, time.Second
	}
	missing := float64(n) - b.tokens
	return false, time.Duration(missing / tb.config.FetchesPerSecond * float64(time.Second))
}

func (tb *tokenBucket) Reset(ctx context.Context, key string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	delete(tb.buckets, key)
}

func (tb *tokenBucket) cleanup(now time.Time) {
	for key, b := range tb.buckets {
		if now.Sub(b.lastRefill) > idleThreshold {
			delete(tb.buckets, key)
		}
	}
	tb.lastCleanup = now
}
