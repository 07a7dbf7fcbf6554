// Package metrics exports paged cache activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/hook"
)

// Metrics holds all Prometheus metrics for a paged cache. It is registered on
// the cache as a hook.
type Metrics struct {
	FetchesTotal   *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	StaleResponses prometheus.Counter
	QueriesTotal   prometheus.Counter
	WindowItems    prometheus.Gauge
	TotalCount     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pagedcache"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of backend fetches completed",
			},
			[]string{"kind", "status"}, // kind: first, more; status: ok, error, stale, superseded
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Backend fetch duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		StaleResponses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_total",
				Help:      "Total number of responses dropped because their query was replaced",
			},
		),
		QueriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries set on the cache",
			},
		),
		WindowItems: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "window_items",
				Help:      "Number of items currently loaded for the active query",
			},
		),
		TotalCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "total_count",
				Help:      "Declared total of the active query, -1 when unknown",
			},
		),
	}
}

// Name returns the hook name
func (m *Metrics) Name() string {
	return "metrics"
}

func kind(f hook.Fetch) string {
	if f.First() {
		return "first"
	}
	return "more"
}

// OnFetchFinished implements hook.FetchHook
func (m *Metrics) OnFetchFinished(f hook.Fetch) {
	k := kind(f)
	switch {
	case f.Stale:
		m.FetchesTotal.WithLabelValues(k, "stale").Inc()
		m.StaleResponses.Inc()
		return
	case f.Superseded:
		m.FetchesTotal.WithLabelValues(k, "superseded").Inc()
		return
	case f.Err != nil:
		m.FetchesTotal.WithLabelValues(k, "error").Inc()
	default:
		m.FetchesTotal.WithLabelValues(k, "ok").Inc()
		m.WindowItems.Set(float64(f.Offset + f.Count))
	}
	m.FetchDuration.WithLabelValues(k).Observe(f.Duration.Seconds())
}

// OnQueryChanged implements hook.QueryHook
func (m *Metrics) OnQueryChanged(q *pagedcache.Query) {
	if q != nil {
		m.QueriesTotal.Inc()
	}
	m.WindowItems.Set(0)
}

// OnTotalCountChanged implements hook.TotalCountHook
func (m *Metrics) OnTotalCountChanged(q *pagedcache.Query, total int) {
	m.TotalCount.Set(float64(total))
}

var (
	_ hook.FetchHook      = (*Metrics)(nil)
	_ hook.QueryHook      = (*Metrics)(nil)
	_ hook.TotalCountHook = (*Metrics)(nil)
)
