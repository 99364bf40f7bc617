// Package web provides the HTTP API and run report pages for the fleet tool.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/dbfleet/internal/config"
	"github.com/JonMunkholm/dbfleet/internal/core"
	mw "github.com/JonMunkholm/dbfleet/internal/web/middleware"
)

// Registry lists the named databases exposed by the API.
type Registry interface {
	Names() []string
	Get(name string) (config.Database, bool)
}

// Server is the HTTP server for the fleet API.
type Server struct {
	service  *core.Service
	registry Registry
	limiter  *core.RunLimiter
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server. registry may be nil when no database registry
// is configured.
func NewServer(service *core.Service, registry Registry, limiter *core.RunLimiter, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		registry: registry,
		limiter:  limiter,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/runs/{runID}", s.handleRunPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}

		r.Get("/status", s.handleStatus)

		// Named databases
		r.Get("/databases", s.handleListDatabases)
		r.Post("/databases/{name}/ping", s.handlePing)

		// Fleet runs
		r.Post("/check", s.handleCheck)
		r.Post("/query", s.handleQuery)
		r.Post("/import", s.handleImport)
		r.Post("/portcheck", s.handlePortCheck)

		// History
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/report.csv", s.handleRunReport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
