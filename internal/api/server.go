// Package api provides the HTTP API server and handlers for FitCoach.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fitcoach/fitcoach-server/internal/ratelimit"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	RateLimiter    *ratelimit.KeyedRateLimiter // nil disables rate limiting
	RequestTimeout time.Duration               // 0 disables the per-request timeout
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	backends Backends
	router   *chi.Mux
	api      huma.API
	opts     Options
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, backends Backends, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		services: services,
		backends: backends,
		router:   chi.NewRouter(),
		opts:     opts,
		logger:   logger,
	}

	// chi requires middleware before any route is mounted.
	s.setupMiddleware()

	config := huma.DefaultConfig("FitCoach API", "1.0.0")
	config.Info.Description = "Exercise search with per-profile search history and suggestions."
	config.Transformers = append(config.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, config)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerProfileRoutes()
	s.registerSearchHistoryRoutes()
	s.registerExerciseRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", profileHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(RateLimitMiddleware(s.opts.RateLimiter, s.logger))
	if s.opts.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.opts.RequestTimeout))
	}
}
