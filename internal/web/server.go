// Package web provides the HTTP server and handlers for the chunked CSV
// upload API.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/config"
	"github.com/JonMunkholm/csvpreview/internal/core"
	"github.com/JonMunkholm/csvpreview/internal/preview"
	custommw "github.com/JonMunkholm/csvpreview/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Uploads is the upload pipeline the handlers drive. *core.Service
// satisfies it; tests substitute fakes.
type Uploads interface {
	CreateSession(ctx context.Context, filename string, size int64) (string, error)
	PutChunk(ctx context.Context, id string, index, total int, body io.Reader) (int, error)
	Finalize(ctx context.Context, id string) (*preview.Result, error)
	Preview(ctx context.Context, id string) (*preview.Result, error)
	Health() core.Health
}

// Server is the HTTP server for the upload API.
type Server struct {
	uploads Uploads
	cfg     *config.Config
	metrics http.Handler
	router  *chi.Mux
	server  *http.Server
	limiter *custommw.RateLimiter
}

// NewServer creates a new Server. metrics may be nil to disable the
// metrics route.
func NewServer(cfg *config.Config, uploads Uploads, metrics http.Handler) *Server {
	s := &Server{
		uploads: uploads,
		cfg:     cfg,
		metrics: metrics,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(custommw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(custommw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = custommw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.limiter.Middleware)
	}
}

// setupRoutes configures all HTTP routes. POST /upload/finalize sits
// outside the request timeout: the finalizer bounds it with
// UPLOAD_TIMEOUT.
func (s *Server) setupRoutes() {
	s.router.Group(func(r chi.Router) {
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}

		r.Get("/healthz", s.handleHealth)
		if s.metrics != nil && s.cfg.Metrics.Enabled {
			r.Handle(s.cfg.Metrics.Path, s.metrics)
		}

		r.Post("/upload/init", s.handleInit)
		r.Post("/upload/chunk", s.handleChunk)
		r.Get("/upload/finalize", s.handleGetPreview)
	})

	s.router.Post("/upload/finalize", s.handleFinalize)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
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
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// API responses never load resources
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
