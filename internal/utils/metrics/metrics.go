package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Payment metrics
	SessionsCreatedTotal *prometheus.CounterVec
	WebhooksTotal        *prometheus.CounterVec
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "paygate"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Payment metrics
		SessionsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "sessions_created_total",
				Help:      "Total number of payment sessions created",
			},
			[]string{"provider", "degraded"},
		),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "webhooks_total",
				Help:      "Total number of verified webhook deliveries by result",
			},
			[]string{"provider", "result"},
		),
		ProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Total number of outbound provider calls",
			},
			[]string{"provider", "status"}, // status: success, error
		),
		ProviderCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "call_duration_seconds",
				Help:      "Outbound provider call duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"provider"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// InFlight returns the in-flight request gauge.
func (m *Metrics) InFlight() prometheus.Gauge {
	return m.HTTPRequestsInFlight
}

// SessionCreated implements outbound.PaymentMetricsPort.
func (m *Metrics) SessionCreated(provider model.Provider, degraded bool) {
	m.SessionsCreatedTotal.WithLabelValues(string(provider), strconv.FormatBool(degraded)).Inc()
}

// WebhookProcessed implements outbound.PaymentMetricsPort.
func (m *Metrics) WebhookProcessed(provider model.Provider, result string) {
	m.WebhooksTotal.WithLabelValues(string(provider), result).Inc()
}

// ProviderCall implements outbound.PaymentMetricsPort.
func (m *Metrics) ProviderCall(provider model.Provider, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	m.ProviderCallsTotal.WithLabelValues(string(provider), status).Inc()
	m.ProviderCallDuration.WithLabelValues(string(provider)).Observe(duration.Seconds())
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Compile-time check
var _ outbound.PaymentMetricsPort = (*Metrics)(nil)
