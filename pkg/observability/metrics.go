package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// RBAC metrics
	PermissionChecksTotal *prometheus.CounterVec
	GateOutcomesTotal     *prometheus.CounterVec
	SnapshotCacheHits     prometheus.Counter
	SnapshotCacheMisses   prometheus.Counter

	// Approval metrics
	ApprovalDecisionsTotal *prometheus.CounterVec

	// Change feed metrics
	FeedEventsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_permission_checks_total",
				Help: "Permission checks by permission and result",
			},
			[]string{"permission", "allowed"},
		),
		GateOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_gate_outcomes_total",
				Help: "Access gate outcomes by module",
			},
			[]string{"module", "outcome"},
		),
		SnapshotCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campus_snapshot_cache_hits_total",
				Help: "RBAC snapshot cache hits",
			},
		),
		SnapshotCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campus_snapshot_cache_misses_total",
				Help: "RBAC snapshot cache misses",
			},
		),
		ApprovalDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_approval_decisions_total",
				Help: "Approval decisions by document type, decision and result",
			},
			[]string{"doc_type", "decision", "result"},
		),
		FeedEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_feed_events_total",
				Help: "Change feed events published by table",
			},
			[]string{"table", "op"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.GateOutcomesTotal,
		m.SnapshotCacheHits,
		m.SnapshotCacheMisses,
		m.ApprovalDecisionsTotal,
		m.FeedEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
