package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the converter. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	CacheFailuresTotal *prometheus.CounterVec
	CachePurgedRows    prometheus.Counter
	RemoteFetchesTotal *prometheus.CounterVec
	ConversionsTotal   prometheus.Counter
}

// NewMetrics registers every collector on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_cache_hits_total",
				Help: "Resolutions served from the persistent cache",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_cache_misses_total",
				Help: "Resolutions that found no cache row",
			},
		),

		CacheFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_cache_failures_total",
				Help: "Cache operations that failed and were bypassed",
			},
			[]string{"operation"},
		),

		CachePurgedRows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_cache_purged_rows_total",
				Help: "Expired cache rows deleted",
			},
		),

		RemoteFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_remote_fetches_total",
				Help: "Requests to the exchange rate provider by outcome",
			},
			[]string{"outcome"},
		),

		ConversionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conversions_total",
				Help: "Total number of successful currency conversions",
			},
		),
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) CacheFailure(operation string) {
	if m != nil {
		m.CacheFailuresTotal.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) Purged(rows int64) {
	if m != nil && rows > 0 {
		m.CachePurgedRows.Add(float64(rows))
	}
}

func (m *Metrics) RemoteFetch(outcome string) {
	if m != nil {
		m.RemoteFetchesTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Conversion() {
	if m != nil {
		m.ConversionsTotal.Inc()
	}
}
