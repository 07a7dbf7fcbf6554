package e2e

import (
	"context"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/backend"
	"github.com/deeplooplabs/pagedcache/cache"
	"github.com/deeplooplabs/pagedcache/hook"
	"github.com/deeplooplabs/pagedcache/metrics"
	"github.com/deeplooplabs/pagedcache/ratelimit"
)

const testAPIKey = "test-api-key"

// TestEnvironment provides a complete test setup: a mock place search service
// behind an HTTP server, and a cache fetching from it over HTTP
type TestEnvironment struct {
	Server      *httptest.Server
	Cache       *cache.Cache[Place]
	MockBackend *E2EMockBackend
	Recorder    *Recorder
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	T           *testing.T
}

// NewTestEnvironment creates a new test environment with all necessary components
func NewTestEnvironment(t *testing.T, opts ...cache.Option) *TestEnvironment {
	mockBackend := NewE2EMockBackend(DemoPlaces())
	server := httptest.NewServer(mockBackend)

	// no retries, failures must surface immediately
	retry := backend.DefaultRetryConfig()
	retry.Enabled = false

	config := backend.NewConfig("places").
		WithEndpoint(server.URL + "/search").
		WithAPIKey(testAPIKey).
		WithTimeout(5 * time.Second).
		WithRetryConfig(retry)
	httpBackend, err := backend.NewHTTP[Place](config)
	require.NoError(t, err)

	limiter := ratelimit.NewTokenBucket(&ratelimit.Config{
		FetchesPerSecond: 1000,
		Burst:            100,
		Enabled:          true,
	})

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("e2e", registry)
	recorder := NewRecorder()

	opts = append([]cache.Option{cache.WithHook(recorder, m)}, opts...)
	c, err := cache.New[Place](context.Background(), backend.NewRateLimited[Place](httpBackend, limiter, true), opts...)
	require.NoError(t, err)

	env := &TestEnvironment{
		Server:      server,
		Cache:       c,
		MockBackend: mockBackend,
		Recorder:    recorder,
		Metrics:     m,
		Registry:    registry,
		T:           t,
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		mockBackend.Release()
		c.Close()
		server.Close()
	})

	return env
}

// WaitFetches waits until n fetches completed and their notifications were delivered
func (env *TestEnvironment) WaitFetches(n int) {
	env.T.Helper()
	require.Eventually(env.T, func() bool {
		return env.Recorder.Count(SignalFetchFinished) >= n
	}, 5*time.Second, 5*time.Millisecond, "waiting for %d fetches", n)
	require.NoError(env.T, env.Cache.Flush(context.Background()))
}

// Signal names a cache notification
type Signal string

const (
	SignalQueryChanged      Signal = "queryChanged"
	SignalTotalCountChanged Signal = "totalCountChanged"
	SignalBatchSizeChanged  Signal = "batchSizeChanged"
	SignalItemsInserted     Signal = "itemsInserted"
	SignalStatusChanged     Signal = "statusChanged"
	SignalFetchFailed       Signal = "fetchFailed"
	SignalFetchFinished     Signal = "fetchFinished"
)

// Event is one recorded notification
type Event struct {
	Signal Signal
	Value  any
}

// Recorder is a hook recording every notification in delivery order
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string {
	return "recorder"
}

func (r *Recorder) record(s Signal, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Signal: s, Value: v})
}

func (r *Recorder) OnQueryChanged(q *pagedcache.Query) {
	r.record(SignalQueryChanged, q)
}

func (r *Recorder) OnTotalCountChanged(q *pagedcache.Query, total int) {
	r.record(SignalTotalCountChanged, total)
}

func (r *Recorder) OnBatchSizeChanged(n int) {
	r.record(SignalBatchSizeChanged, n)
}

func (r *Recorder) OnItemsInserted(q *pagedcache.Query, first, last int) {
	r.record(SignalItemsInserted, [2]int{first, last})
}

func (r *Recorder) OnStatusChanged(status pagedcache.Status) {
	r.record(SignalStatusChanged, status)
}

func (r *Recorder) OnFetchFailed(q *pagedcache.Query, offset int, err error) {
	r.record(SignalFetchFailed, err)
}

func (r *Recorder) OnFetchFinished(f hook.Fetch) {
	r.record(SignalFetchFinished, f)
}

// Events returns the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Values returns the values recorded for signal s
func (r *Recorder) Values(s Signal) []any {
	var out []any
	for _, e := range r.Events() {
		if e.Signal == s {
			out = append(out, e.Value)
		}
	}
	return out
}

// Count returns how often signal s was recorded
func (r *Recorder) Count(s Signal) int {
	return len(r.Values(s))
}

// Clear forgets all recorded events
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// PropertyCase describes the expected state of one cache property and the
// signal announcing its change
type PropertyCase struct {
	// Signal is emitted when the property changes, empty for none
	Signal Signal
	// Property names the cache getter
	Property string
	// Expected is the value once the first batch arrived
	Expected any
	// IsArray compares Expected as a multiset
	IsArray bool
	// ResetValue is the value after the query is cleared
	ResetValue any
}

// Property reads the named property from c
func Property(c *cache.Cache[Place], name string) any {
	switch name {
	case "totalCount":
		return c.TotalCount()
	case "batchSize":
		return c.BatchSize()
	case "status":
		return c.Status()
	case "len":
		return c.Len()
	case "canFetchMore":
		return c.CanFetchMore()
	case "itemIDs":
		var ids []string
		for _, p := range c.Items() {
			ids = append(ids, p.ID)
		}
		return ids
	}
	return nil
}

// AssertProperty checks one property against want
func (pc PropertyCase) AssertProperty(t *testing.T, c *cache.Cache[Place], want any) {
	t.Helper()
	got := Property(c, pc.Property)
	if pc.IsArray {
		assert.ElementsMatch(t, want, got, "property %s", pc.Property)
		return
	}
	assert.Equal(t, want, got, "property %s", pc.Property)
}

var _ hook.Hook = (*Recorder)(nil)
