package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptyoself_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptyoself_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptyoself_registrations_total",
			Help: "Total reminders registered by schedule type",
		},
		[]string{"schedule_type"},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptyoself_deliveries_total",
			Help: "Total delivery attempts by schedule type and outcome",
		},
		[]string{"schedule_type", "outcome"},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promptyoself_execution_pass_duration_seconds",
			Help:    "Duration of one due-reminder execution pass",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptyoself_rate_limit_rejections_total",
			Help: "Requests rejected by the per-agent rate limiter",
		},
		[]string{"agent_id"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRegistration records a successful reminder registration
func RecordRegistration(scheduleType string) {
	registrationsTotal.WithLabelValues(scheduleType).Inc()
}

// RecordDelivery records one delivery attempt result
func RecordDelivery(scheduleType string, delivered bool) {
	outcome := "failed"
	if delivered {
		outcome = "delivered"
	}
	deliveriesTotal.WithLabelValues(scheduleType, outcome).Inc()
}

// ObservePassDuration records the duration of one execution pass
func ObservePassDuration(d time.Duration) {
	passDuration.Observe(d.Seconds())
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(agentID string) {
	rateLimitRejections.WithLabelValues(agentID).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
