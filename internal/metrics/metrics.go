package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	AuthAttempts    *prometheus.CounterVec
	ActivityWrites  *prometheus.CounterVec
	TokensRejected  *prometheus.CounterVec
	ReportDurations *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audit_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_auth_attempts_total",
			Help: "Login, register and refresh attempts by outcome",
		}, []string{"operation", "outcome"}),
		ActivityWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_activity_writes_total",
			Help: "Activity log mutations by operation",
		}, []string{"operation"}),
		TokensRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_tokens_rejected_total",
			Help: "Bearer tokens rejected by the access gate, by reason",
		}, []string{"reason"}),
		ReportDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audit_report_duration_seconds",
			Help:    "Time spent computing reports",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry; used by tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) AuthAttempt(operation string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.AuthAttempts.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ActivityWrite(operation string) {
	if m == nil {
		return
	}
	m.ActivityWrites.WithLabelValues(operation).Inc()
}

func (m *Metrics) TokenRejected(reason string) {
	if m == nil {
		return
	}
	m.TokensRejected.WithLabelValues(reason).Inc()
}

// TimeReport returns a func that records the elapsed time for report when called.
func (m *Metrics) TimeReport(report string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.ReportDurations.WithLabelValues(report).Observe(time.Since(start).Seconds())
	}
}
