package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		[]string{"method", "endpoint"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	dbQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Business metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of staff authentication attempts",
		},
		[]string{"status"},
	)

	querySubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_submissions_total",
			Help: "Total number of accepted query submissions",
		},
		[]string{"method"},
	)

	queryValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_validation_failures_total",
			Help: "Total number of field validation failures on submission",
		},
		[]string{"field"},
	)

	queryRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_rate_limited_total",
			Help: "Total number of submissions rejected by the rate limiter",
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_notifications_total",
			Help: "Total number of query notifications by channel and outcome",
		},
		[]string{"channel", "status"},
	)
)

// PrometheusMiddleware creates a middleware that records Prometheus metrics.
// endpoint maps a request to a bounded label value; nil uses the raw path.
func PrometheusMiddleware(endpoint func(*http.Request) string, next http.Handler) http.Handler {
	if endpoint == nil {
		endpoint = func(r *http.Request) string { return r.URL.Path }
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		label := endpoint(r)
		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, label, statusCode).Inc()
		httpRequestDuration.WithLabelValues(r.Method, label, statusCode).Observe(duration)
		httpResponseSize.WithLabelValues(r.Method, label).Observe(float64(wrapped.size))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// RecordAuthAttempt records a staff login attempt
func RecordAuthAttempt(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	authAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordQuerySubmission records an accepted query
func RecordQuerySubmission(method string) {
	querySubmissionsTotal.WithLabelValues(method).Inc()
}

// RecordValidationFailure records one failed field on a rejected submission
func RecordValidationFailure(field string) {
	queryValidationFailuresTotal.WithLabelValues(field).Inc()
}

// RecordRateLimited records a submission refused by the limiter
func RecordRateLimited() {
	queryRateLimitedTotal.Inc()
}

// RecordNotification records a notification attempt on channel
func RecordNotification(channel string, err error) {
	status := "sent"
	if err != nil {
		status = "error"
	}
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordDBQuery records a database query
func RecordDBQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	dbQueriesTotal.WithLabelValues(operation, status).Inc()
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnections updates database connection metrics
func UpdateDBConnections(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}
