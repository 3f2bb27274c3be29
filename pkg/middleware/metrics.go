// Package middleware provides the HTTP middleware shared by the indexer and
// search services: request IDs, Prometheus metrics, timeouts, per-client rate
// limiting and CORS.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
)

// Metrics returns middleware that records HTTP request count, latency, and
// in-flight gauge.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			m.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(sw.status),
			).Inc()

			m.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

// normalizePath maps request paths onto the fixed set of routes so that
// arbitrary URLs cannot blow up label cardinality.
func normalizePath(path string) string {
	switch path {
	case "/api/v1/search", "/api/v1/index/stats", "/api/v1/index/reload",
		"/api/v1/cache/stats", "/api/v1/cache/invalidate", "/api/v1/pages",
		"/health/live", "/health/ready", "/metrics":
		return path
	}
	return "other"
}
