package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the gateway. Each instance
// owns its registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Engine metrics
	engineCallsTotal    *prometheus.CounterVec
	engineCallDuration  *prometheus.HistogramVec
	selectorErrorsTotal *prometheus.CounterVec

	// Gateway metrics
	authFailuresTotal *prometheus.CounterVec
	rateLimitedTotal  prometheus.Counter
}

// NewMetrics creates a metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchgate_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		engineCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchgate_engine_calls_total",
				Help: "Total number of engine calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		engineCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchgate_engine_call_duration_seconds",
				Help:    "Engine call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		selectorErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchgate_selector_errors_total",
				Help: "Total number of CSS or XPath selectors that failed to evaluate",
			},
			[]string{"kind"},
		),
		authFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchgate_auth_failures_total",
				Help: "Total number of rejected credentials",
			},
			[]string{"reason"},
		),
		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fetchgate_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.engineCallsTotal,
		m.engineCallDuration,
		m.selectorErrorsTotal,
		m.authFailuresTotal,
		m.rateLimitedTotal,
	)
	return m
}

// RegisterActivePages exposes a gauge reading the number of browser pages
// currently serving requests.
func (m *Metrics) RegisterActivePages(fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fetchgate_browser_pages_active",
			Help: "Number of browser pages currently serving requests",
		},
		func() float64 { return float64(fn()) },
	))
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusLabel(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEngineCall records one engine call. outcome is "ok" or "error".
func (m *Metrics) RecordEngineCall(operation string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.engineCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.engineCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncSelectorError counts a failed selector of the given kind.
func (m *Metrics) IncSelectorError(kind string) {
	m.selectorErrorsTotal.WithLabelValues(kind).Inc()
}

// IncAuthFailure counts a rejected credential. reason is "missing" or "invalid".
func (m *Metrics) IncAuthFailure(reason string) {
	m.authFailuresTotal.WithLabelValues(reason).Inc()
}

// IncRateLimited counts a request rejected by the rate limiter.
func (m *Metrics) IncRateLimited() {
	m.rateLimitedTotal.Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinHandler returns a Gin handler for Prometheus metrics
func (m *Metrics) GinHandler() gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
