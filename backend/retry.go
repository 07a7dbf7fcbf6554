package backend

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 2)
	MaxRetries int

	// InitialBackoff is the initial backoff duration (default: 100ms)
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration (default: 5s)
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64

	// Jitter adds up to 25% randomness to each backoff (default: true)
	Jitter bool

	// RetryableStatusCodes are HTTP status codes that trigger retries
	RetryableStatusCodes map[int]bool

	// Enabled indicates whether retries are enabled
	Enabled bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableStatusCodes: map[int]bool{
			http.StatusRequestTimeout:      true, // 408
			http.StatusTooManyRequests:     true, // 429
			http.StatusInternalServerError: true, // 500
			http.StatusBadGateway:          true, // 502
			http.StatusServiceUnavailable:  true, // 503
			http.StatusGatewayTimeout:      true, // 504
		},
		Enabled: true,
	}
}

func (rc *RetryConfig) shouldRetry(statusCode int) bool {
	if !rc.Enabled {
		return false
	}
	return rc.RetryableStatusCodes[statusCode]
}

func (rc *RetryConfig) backoff(attempt int) time.Duration {
	d := float64(rc.InitialBackoff) * math.Pow(rc.BackoffMultiplier, float64(attempt))
	if d > float64(rc.MaxBackoff) {
		d = float64(rc.MaxBackoff)
	}
	if rc.Jitter {
		d += d * 0.25 * rand.Float64()
	}
	return time.Duration(d)
}

// retryWithBackoff runs fn until it returns a non-retryable response, the
// attempts are used up, or ctx is done. The last response or error is returned.
func retryWithBackoff(ctx context.Context, config *RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	if config == nil || !config.Enabled {
		return fn()
	}

	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		resp, lastErr = fn()
		if lastErr == nil {
			if !config.shouldRetry(resp.StatusCode) || attempt == config.MaxRetries {
				return resp, nil
			}
			resp.Body.Close()
		} else if ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt < config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(config.backoff(attempt)):
			}
		}
	}
	return nil, lastErr
}
