// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/jmdto/linkshort/internal/auth"
	"github.com/jmdto/linkshort/internal/config"
	"github.com/jmdto/linkshort/internal/handlers"
	"github.com/jmdto/linkshort/internal/metrics"
	"github.com/jmdto/linkshort/internal/middleware"
	"github.com/jmdto/linkshort/pkg/logger"
)

// Handlers bundles the request handlers wired into the server.
type Handlers struct {
	Redirect *handlers.RedirectHandler
	Link     *handlers.LinkHandler
	User     *handlers.UserHandler
	Auth     *handlers.AuthHandler
}

// Server represents the HTTP server.
type Server struct {
	cfg           *config.Config
	log           *logger.Logger
	httpServer    *http.Server
	healthHandler *handlers.HealthHandler
	listener      net.Listener
	running       bool
	mu            sync.RWMutex
}

// New creates a new Server instance with the given handlers. tokens guards
// the management API routes.
func New(cfg *config.Config, log *logger.Logger, h Handlers, tokens *auth.TokenManager) *Server {
	s := &Server{
		cfg:           cfg,
		log:           log,
		healthHandler: handlers.NewHealthHandler(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux, h, tokens)

	chain := middleware.New(
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.ClientIP(cfg.Server.TrustProxy),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      chain.Then(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h Handlers, tokens *auth.TokenManager) {
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Auth.Logout)

	// Link management requires an authenticated caller.
	authed := auth.RequireAuth(tokens)
	mux.Handle("POST /api/v1/links", authed(http.HandlerFunc(h.Link.Create)))
	mux.Handle("GET /api/v1/links", authed(http.HandlerFunc(h.Link.List)))
	mux.Handle("PUT /api/v1/links/{id}", authed(pathValueHandler("id", h.Link.Update)))
	mux.Handle("DELETE /api/v1/links/{id}", authed(pathValueHandler("id", h.Link.Delete)))
	mux.Handle("POST /api/v1/links/{id}/variants", authed(pathValueHandler("id", h.Link.CreateVariant)))
	mux.Handle("DELETE /api/v1/variants/{id}", authed(pathValueHandler("id", h.Link.DeleteVariant)))

	// User management is admin only.
	admin := func(handler http.Handler) http.Handler {
		return authed(auth.RequireAdmin(handler))
	}
	mux.Handle("POST /api/v1/users", admin(http.HandlerFunc(h.User.Create)))
	mux.Handle("GET /api/v1/users", admin(http.HandlerFunc(h.User.List)))
	mux.Handle("GET /api/v1/users/{id}", admin(pathValueHandler("id", h.User.Get)))
	mux.Handle("PUT /api/v1/users/{id}", admin(pathValueHandler("id", h.User.Update)))
	mux.Handle("DELETE /api/v1/users/{id}", admin(pathValueHandler("id", h.User.Delete)))
	mux.Handle("POST /api/v1/users/{id}/toggle-admin", admin(pathValueHandler("id", h.User.ToggleAdmin)))

	// Redirect route. More specific routes like /health and /api/v1/...
	// win over the wildcard in Go's ServeMux.
	mux.HandleFunc("GET /{code}", func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		if code == "" {
			http.Error(w, "invalid short code", http.StatusBadRequest)
			return
		}
		h.Redirect.Redirect(w, r, code)
	})
}

// pathValueHandler adapts a handler taking a path parameter to http.Handler.
func pathValueHandler(name string, fn func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := r.PathValue(name)
		if value == "" {
			http.Error(w, "missing path parameter", http.StatusBadRequest)
			return
		}
		fn(w, r, value)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	// Create listener first to get the actual address (important when port is 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	// Mark as not ready during shutdown
	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}
