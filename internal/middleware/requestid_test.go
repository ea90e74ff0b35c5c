package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	t.Run("generates a UUID when header is absent", func(t *testing.T) {
		var captured string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.NotEmpty(t, captured)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err)
		assert.Equal(t, captured, rec.Header().Get(HeaderXRequestID))
	})

	t.Run("keeps a valid inbound request ID", func(t *testing.T) {
		var captured string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderXRequestID, "client-supplied-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "client-supplied-42", captured)
	})

	t.Run("replaces an invalid inbound request ID", func(t *testing.T) {
		var captured string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderXRequestID, "has spaces and $ymbols")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.NotEqual(t, "has spaces and $ymbols", captured)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err)
	})

	t.Run("replaces an oversized request ID", func(t *testing.T) {
		var captured string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		long := strings.Repeat("a", requestIDMaxLength+1)
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderXRequestID, long)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.NotEqual(t, long, captured)
	})
}

func TestClientIP(t *testing.T) {
	capture := func(handler Middleware) (func(*http.Request), *string) {
		var ip string
		wrapped := handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip = GetClientIP(r.Context())
		}))
		return func(req *http.Request) {
			wrapped.ServeHTTP(httptest.NewRecorder(), req)
		}, &ip
	}

	t.Run("uses remote address without proxy trust", func(t *testing.T) {
		serve, ip := capture(ClientIP(false))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "203.0.113.9:4567"
		req.Header.Set(HeaderXForwardedFor, "198.51.100.1")
		serve(req)
		assert.Equal(t, "203.0.113.9", *ip)
	})

	t.Run("honors X-Forwarded-For when trusted", func(t *testing.T) {
		serve, ip := capture(ClientIP(true))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:4567"
		req.Header.Set(HeaderXForwardedFor, "198.51.100.1, 10.0.0.1")
		serve(req)
		assert.Equal(t, "198.51.100.1", *ip)
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		serve, ip := capture(ClientIP(true))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:4567"
		req.Header.Set(HeaderXRealIP, "198.51.100.2")
		serve(req)
		assert.Equal(t, "198.51.100.2", *ip)
	})

	t.Run("falls back to remote address when no headers", func(t *testing.T) {
		serve, ip := capture(ClientIP(true))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "203.0.113.9:4567"
		serve(req)
		assert.Equal(t, "203.0.113.9", *ip)
	})
}
