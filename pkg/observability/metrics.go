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

	// Access-control metrics
	PermissionDenialsTotal   *prometheus.CounterVec
	MembershipMutationsTotal *prometheus.CounterVec
	InvariantRejectionsTotal prometheus.Counter

	// Ordered-resource metrics
	SectionUpdatesTotal  *prometheus.CounterVec
	SectionReordersTotal prometheus.Counter
	TxConflictsTotal     *prometheus.CounterVec

	// Cache metrics
	RoleCacheHitsTotal   prometheus.Counter
	RoleCacheMissesTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workspaced_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_permission_denials_total",
				Help: "Total number of mutations denied by the permission policy",
			},
			[]string{"operation"},
		),
		MembershipMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_membership_mutations_total",
				Help: "Total number of committed membership mutations",
			},
			[]string{"operation"},
		),
		InvariantRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_invariant_rejections_total",
				Help: "Total number of mutations rejected for violating the sole-owner invariant",
			},
		),
		SectionUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_section_updates_total",
				Help: "Total number of committed section mutations",
			},
			[]string{"operation"},
		),
		SectionReordersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_section_reorders_total",
				Help: "Total number of explicit section reorders",
			},
		),
		TxConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_tx_conflicts_total",
				Help: "Total number of transaction serialization conflicts surfaced to callers",
			},
			[]string{"operation"},
		),
		RoleCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_role_cache_hits_total",
				Help: "Total number of role cache hits",
			},
		),
		RoleCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_role_cache_misses_total",
				Help: "Total number of role cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionDenialsTotal,
		m.MembershipMutationsTotal,
		m.InvariantRejectionsTotal,
		m.SectionUpdatesTotal,
		m.SectionReordersTotal,
		m.TxConflictsTotal,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the Prometheus scrape handler for a registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an http.Handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
