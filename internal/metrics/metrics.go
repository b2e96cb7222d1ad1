// Package metrics holds the Prometheus collectors for the client core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "workforce_client"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing,
// so components can take one as an optional dependency.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RefreshesTotal   *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	PushStatus       prometheus.Gauge
	PushReconnects   prometheus.Counter
	InvalidatedKeys  *prometheus.CounterVec
	CacheReadsTotal  *prometheus.CounterVec
	CacheEntries     prometheus.Gauge
	SessionTeardowns *prometheus.CounterVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests issued by the transport",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Token refresh calls by audience and result",
			},
			[]string{"audience", "result"}, // result=ok/failed
		),
		ErrorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classified_errors_total",
				Help:      "Failures surfaced to callers by kind",
			},
			[]string{"kind"}, // kind=api/connectivity
		),
		PushStatus: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "push_status",
				Help:      "Push channel status (0=disconnected, 1=connecting, 2=connected)",
			},
		),
		PushReconnects: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_reconnect_attempts_total",
				Help:      "Automatic push channel reconnect attempts",
			},
		),
		InvalidatedKeys: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Cache invalidations triggered by push events",
			},
			[]string{"resource"},
		),
		CacheReadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_reads_total",
				Help:      "Cache reads by outcome",
			},
			[]string{"outcome"}, // outcome=fresh/stale/miss/error
		),
		CacheEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Number of entries held by the read cache",
			},
		),
		SessionTeardowns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_teardowns_total",
				Help:      "Sessions cleared after an unrecoverable refresh failure",
			},
			[]string{"audience"},
		),
	}
}

func (m *Metrics) ObserveRequest(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveRefresh(audience string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.RefreshesTotal.WithLabelValues(audience, result).Inc()
}

func (m *Metrics) ObserveError(kind string) {
	if m == nil || kind == "" {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetPushStatus(v int) {
	if m == nil {
		return
	}
	m.PushStatus.Set(float64(v))
}

func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.PushReconnects.Inc()
}

func (m *Metrics) ObserveInvalidation(resource string, keys int) {
	if m == nil {
		return
	}
	m.InvalidatedKeys.WithLabelValues(resource).Add(float64(keys))
}

func (m *Metrics) ObserveCacheRead(outcome string) {
	if m == nil {
		return
	}
	m.CacheReadsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

func (m *Metrics) ObserveTeardown(audience string) {
	if m == nil {
		return
	}
	m.SessionTeardowns.WithLabelValues(audience).Inc()
}
