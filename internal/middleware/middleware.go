// Package middleware provides the server's HTTP middleware and the chain
// that composes it.
package middleware

import (
	"context"
	"net/http"
)

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// contextKey is unexported so no other package can collide with the values
// this one stashes in request contexts.
type contextKey string

const (
	// RequestIDKey carries the per-request ID set by RequestID.
	RequestIDKey contextKey = "request_id"
	// ClientIPKey carries the client address resolved by ClientIP.
	ClientIPKey contextKey = "client_ip"
)

// GetRequestID returns the request ID from ctx, or "" when RequestID did not
// run.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetClientIP returns the client IP from ctx, or "" when ClientIP did not
// run.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPKey).(string)
	return ip
}

// Chain is an immutable, ordered list of middlewares. The first entry ends
// up as the outermost wrapper, so it sees the request first.
type Chain struct {
	middlewares []Middleware
}

// New builds a chain from the given middlewares.
func New(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: append([]Middleware{}, middlewares...)}
}

// Then wraps h in the chain. A nil h falls back to http.DefaultServeMux.
func (c *Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.DefaultServeMux
	}
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// ThenFunc is Then for a bare handler function.
func (c *Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	return c.Then(fn)
}

// Append returns a new chain with the extra middlewares on the inside; the
// receiver is left untouched.
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	combined := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	combined = append(combined, c.middlewares...)
	combined = append(combined, middlewares...)
	return &Chain{middlewares: combined}
}
