// Package httpserver provides the HTTP server for health checks, Prometheus
// metrics and read access to stored referee runs.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/database"
	"github.com/helixir/referee-finder/internal/repository"
)

// DefaultMetricsPath is used when Config.MetricsPath is empty.
const DefaultMetricsPath = "/metrics"

// HealthChecker reports database health. *database.DB satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	runs           repository.RunRepository
	health         HealthChecker
	metricsHandler http.Handler
	metricsPath    string
	logger         zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MetricsPath is where Prometheus metrics are served. Empty uses DefaultMetricsPath.
	MetricsPath string
	// DisableMetrics omits the metrics route.
	DisableMetrics bool
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithRunRepository mounts the run API backed by repo.
func WithRunRepository(repo repository.RunRepository) Option {
	return func(s *Server) {
		s.runs = repo
	}
}

// WithHealthChecker makes the health endpoints report database status.
func WithHealthChecker(hc HealthChecker) Option {
	return func(s *Server) {
		s.health = hc
	}
}

// WithMetricsHandler replaces the default promhttp handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		metricsHandler: promhttp.Handler(),
		metricsPath:    cfg.MetricsPath,
		logger:         logger.With().Str("component", "http-server").Logger(),
	}
	if s.metricsPath == "" {
		s.metricsPath = DefaultMetricsPath
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.DisableMetrics {
		s.metricsHandler = nil
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.metricsHandler != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metricsHandler)
	}

	if s.runs != nil {
		r.Route("/api/v1/runs/{runID}", func(r chi.Router) {
			r.Use(jsonContentTypeMiddleware)
			r.Get("/", s.getRun)
			r.Get("/referees", s.getRunReferees)
		})
	}

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns liveness status. Without a database it always reports ok.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler reports readiness including pool statistics.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "not_ready",
			"database": health,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"database": health,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
