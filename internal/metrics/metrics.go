package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Cohort service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics.
	AuthSuccessesTotal prometheus.Counter
	AuthFailuresTotal  prometheus.Counter

	// Session lifecycle metrics.
	SessionsCreatedTotal     prometheus.Counter
	SessionsInvalidatedTotal *prometheus.CounterVec

	// Hierarchy resolver metrics.
	TreeCacheHitsTotal   prometheus.Counter
	TreeCacheMissesTotal prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cohort_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cohort_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		AuthSuccessesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cohort_auth_successes_total",
			Help: "Total number of successful logins.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cohort_auth_failures_total",
			Help: "Total number of failed login attempts.",
		}),

		SessionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cohort_sessions_created_total",
			Help: "Total number of sessions issued.",
		}),

		SessionsInvalidatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cohort_sessions_invalidated_total",
			Help: "Total number of sessions invalidated, by cause.",
		}, []string{"cause"}),

		TreeCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cohort_tree_cache_hits_total",
			Help: "Total number of hierarchy tree cache hits.",
		}),

		TreeCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cohort_tree_cache_misses_total",
			Help: "Total number of hierarchy tree cache misses.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cohort_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthSuccessesTotal,
		m.AuthFailuresTotal,
		m.SessionsCreatedTotal,
		m.SessionsInvalidatedTotal,
		m.TreeCacheHitsTotal,
		m.TreeCacheMissesTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, pathPattern string, statusCode int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
}

// IncAuthSuccess increments the successful-login counter.
func (m *Metrics) IncAuthSuccess() {
	m.AuthSuccessesTotal.Inc()
}

// IncAuthFailure increments the failed-login counter.
func (m *Metrics) IncAuthFailure() {
	m.AuthFailuresTotal.Inc()
}

// IncSessionCreated increments the issued-session counter.
func (m *Metrics) IncSessionCreated() {
	m.SessionsCreatedTotal.Inc()
}

// IncSessionInvalidated increments the invalidated-session counter. Cause is
// "logout", "logout_all", or "expired".
func (m *Metrics) IncSessionInvalidated(cause string) {
	m.SessionsInvalidatedTotal.WithLabelValues(cause).Inc()
}

// IncTreeCacheHit increments the tree cache hit counter.
func (m *Metrics) IncTreeCacheHit() {
	m.TreeCacheHitsTotal.Inc()
}

// IncTreeCacheMiss increments the tree cache miss counter.
func (m *Metrics) IncTreeCacheMiss() {
	m.TreeCacheMissesTotal.Inc()
}
