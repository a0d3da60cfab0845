package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Access-control pipeline stages, used as the "stage" label on decision metrics.
const (
	StageSchoolResolver      = "school_resolver"
	StageMembershipValidator = "membership_validator"
	StagePermissionEnforcer  = "permission_enforcer"
)

// Decision labels for AccessDecisionsTotal.
const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access-control pipeline metrics
	AccessDecisionsTotal *prometheus.CounterVec
	AccessCheckDuration  *prometheus.HistogramVec

	// Tenant lifecycle metrics
	SchoolRegistrationsTotal *prometheus.CounterVec
	SchoolTransitionsTotal   *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
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
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_access_decisions_total",
				Help: "Access-control decisions by pipeline stage",
			},
			[]string{"stage", "decision"},
		),
		AccessCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_access_check_duration_seconds",
				Help:    "Access-control check duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"stage"},
		),
		SchoolRegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_school_registrations_total",
				Help: "School registration attempts by outcome",
			},
			[]string{"status"},
		),
		SchoolTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_school_transitions_total",
				Help: "School lifecycle transitions",
			},
			[]string{"to_status"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campus_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campus_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDecisionsTotal,
		m.AccessCheckDuration,
		m.SchoolRegistrationsTotal,
		m.SchoolTransitionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// RecordAccessDecision records the outcome of one pipeline stage.
func (m *Metrics) RecordAccessDecision(stage string, allowed bool, elapsed time.Duration) {
	decision := DecisionDenied
	if allowed {
		decision = DecisionAllowed
	}
	m.AccessDecisionsTotal.WithLabelValues(stage, decision).Inc()
	m.AccessCheckDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// CollectDBStats copies connection pool stats into the gauges.
func (m *Metrics) CollectDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
