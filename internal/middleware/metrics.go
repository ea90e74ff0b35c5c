package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/jmdto/linkshort/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			metrics.ActiveConnections.Inc()
			defer metrics.ActiveConnections.Dec()

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			route := normalizeRoute(r.URL.Path)
			metrics.RecordRequest(r.Method, route, rw.statusCode, duration)
		})
	}
}

// normalizeRoute maps request paths to bounded route labels so dynamic
// segments do not explode metric cardinality.
func normalizeRoute(path string) string {
	switch {
	case path == "/health" || path == "/ready" || path == "/metrics":
		return path
	case path == "/api/v1/auth/login" || path == "/api/v1/auth/logout":
		return path
	case path == "/api/v1/links":
		return path
	case strings.HasPrefix(path, "/api/v1/links/"):
		if strings.HasSuffix(path, "/variants") {
			return "/api/v1/links/{id}/variants"
		}
		return "/api/v1/links/{id}"
	case strings.HasPrefix(path, "/api/v1/variants/"):
		return "/api/v1/variants/{id}"
	case path == "/api/v1/users":
		return path
	case strings.HasPrefix(path, "/api/v1/users/"):
		if strings.HasSuffix(path, "/toggle-admin") {
			return "/api/v1/users/{id}/toggle-admin"
		}
		return "/api/v1/users/{id}"
	case len(path) > 1 && path[0] == '/' && !strings.Contains(path[1:], "/"):
		// Short code redirects: /{code}
		return "/{code}"
	default:
		return "/other"
	}
}
