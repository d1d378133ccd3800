package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Parse pipeline metrics
	filesParsedTotal      *prometheus.CounterVec
	parseDuration         *prometheus.HistogramVec
	parseFailuresTotal    prometheus.Counter
	bytesParsedTotal      prometheus.Counter
	warningsObservedTotal prometheus.Counter

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		// HTTP request metrics
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niflheim_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "niflheim_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "niflheim_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		// Parse pipeline metrics
		filesParsedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niflheim_files_parsed_total",
				Help: "Total number of uploaded containers parsed",
			},
			[]string{"format", "operation"},
		),

		parseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "niflheim_parse_duration_seconds",
				Help:    "Container parse duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "operation"},
		),

		parseFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "niflheim_parse_failures_total",
				Help: "Total number of uploads no registered format accepted",
			},
		),

		bytesParsedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "niflheim_bytes_parsed_total",
				Help: "Total size of parsed uploads in bytes",
			},
		),

		warningsObservedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "niflheim_warnings_observed_total",
				Help: "Total number of integrity warnings raised by parsed uploads",
			},
		),

		// Authentication metrics
		authRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niflheim_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		// Health check metrics
		healthChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niflheim_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordParse records one successfully parsed upload
func (m *Metrics) RecordParse(format, operation string, size int64, warnings int, duration time.Duration) {
	m.filesParsedTotal.WithLabelValues(format, operation).Inc()
	m.parseDuration.WithLabelValues(format, operation).Observe(duration.Seconds())
	m.bytesParsedTotal.Add(float64(size))
	m.warningsObservedTotal.Add(float64(warnings))
}

// RecordParseFailure records an upload no registered format accepted
func (m *Metrics) RecordParseFailure() {
	m.parseFailuresTotal.Inc()
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Call the original handler
		handler(rw, r)

		// Record metrics
		duration := time.Since(start)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, duration)
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if API key is present
			apiKey := r.Header.Get("X-API-Key")
			hasAPIKey := apiKey != ""

			// Wrap the writer so the auth outcome is visible after the chain runs
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// Call the auth middleware
			next(h).ServeHTTP(rw, r)

			// Record auth metrics based on response status
			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
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
