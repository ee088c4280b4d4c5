// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"bufio"
	"net"
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
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	tokensIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tokens_issued_total",
			Help: "Total number of tokens issued",
		},
		[]string{"type"}, // "pair" or "refresh"
	)

	signatureRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_signature_rejections_total",
			Help: "Total number of signed requests rejected by the guard",
		},
		[]string{"reason"}, // "missing_headers", "expired", "invalid_signature"
	)

	connectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_hub_connections",
			Help: "Number of live hub connections",
		},
	)

	eventsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_hub_events_delivered_total",
			Help: "Total number of events queued for delivery to connections",
		},
		[]string{"type"},
	)
)

// RecordTokenIssued records a token issuance. kind is "pair" for a full
// issue and "refresh" for a refreshed access token.
func RecordTokenIssued(kind string) {
	tokensIssuedTotal.WithLabelValues(kind).Inc()
}

// RecordSignatureRejection records a request the signature guard turned
// away.
func RecordSignatureRejection(reason string) {
	signatureRejectionsTotal.WithLabelValues(reason).Inc()
}

// SetConnections sets the live hub connection count.
func SetConnections(count int) {
	connectionsGauge.Set(float64(count))
}

// RecordEventDelivered counts one event queued to one connection.
func RecordEventDelivered(eventType string) {
	eventsDeliveredTotal.WithLabelValues(eventType).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the metrics wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// normalizePath collapses unknown paths to keep label cardinality down.
func normalizePath(path string) string {
	knownPaths := []string{
		"/livez",
		"/readyz",
		"/metrics",
		"/ws",
		"/v1/auth/token",
		"/v1/auth/refresh",
		"/v1/auth/dev-test",
		"/v1/extension/actions",
		"/v1/extension/feedback",
		"/v1/extension/status",
	}

	for _, known := range knownPaths {
		if path == known {
			return path
		}
	}
	return "/other"
}
