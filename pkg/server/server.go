package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cricmirror/core/pkg/handlers/health"
	jobshandler "github.com/cricmirror/core/pkg/handlers/jobs"
	pausehandler "github.com/cricmirror/core/pkg/handlers/pausewindow"
	"github.com/cricmirror/core/pkg/handlers/runs"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/middleware"
)

// Deps are the collaborators behind the admin API
type Deps struct {
	DB          health.Pinger
	PauseWindow pausehandler.Service
	Jobs        jobshandler.Manager
	Toggles     jobshandler.ToggleStore
	Runs        runs.Store
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

// Config holds listener settings
type Config struct {
	Host           string
	Port           string
	AllowedOrigins []string
}

// Server represents the admin API server
type Server struct {
	router *chi.Mux
	http   *http.Server
	logger *logger.Logger
}

// New creates the admin API server
func New(cfg Config, deps Deps, log *logger.Logger) *Server {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	s := &Server{
		router: chi.NewRouter(),
		logger: log,
	}
	s.setupRoutes(cfg, deps)

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(cfg Config, deps Deps) {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler := health.NewHandler(s.logger, deps.DB)
	r.Get("/health", healthHandler.HealthCheck)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if deps.PauseWindow != nil {
			pw := pausehandler.NewHandler(deps.PauseWindow, s.logger)
			r.Get("/pause-window", pw.Get)
			r.Put("/pause-window", pw.Update)
		}

		if deps.Jobs != nil && deps.Toggles != nil && deps.Runs != nil {
			jh := jobshandler.NewHandler(deps.Jobs, deps.Toggles, deps.Runs, s.logger)
			r.Get("/jobs", jh.List)
			r.Put("/jobs/{key}/toggle", jh.Toggle)
			r.Post("/jobs/{key}/run", jh.Run)
		}

		if deps.Runs != nil {
			rh := runs.NewHandler(deps.Runs, s.logger)
			r.Get("/runs", rh.List)
			r.Get("/runs/{runID}", rh.Timeline)
		}
	})
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("addr", s.http.Addr).
		Msg("Starting admin API server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start on %s: %w", s.http.Addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Str("action", "server_shutdown").Msg("Shutting down admin API server")
	return s.http.Shutdown(ctx)
}
