// Package http provides the HTTP server of the tvplay shell.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmylchreest/tvplay/internal/config"
	"github.com/jmylchreest/tvplay/internal/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath serves the Prometheus registry.
const MetricsPath = "/metrics"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind to (default: "0.0.0.0").
	Host string
	// Port is the port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero disables it, which the event stream needs.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration
	// ShutdownTimeout is the maximum duration to wait for active connections to close.
	ShutdownTimeout time.Duration
	// CORSOrigins lists allowed origins; empty allows all.
	CORSOrigins []string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ServerConfigFrom maps the application config onto a ServerConfig.
func ServerConfigFrom(cfg config.ServerConfig) ServerConfig {
	sc := DefaultServerConfig()
	sc.Host = cfg.Host
	sc.Port = cfg.Port
	sc.ReadTimeout = cfg.ReadTimeout
	sc.WriteTimeout = cfg.WriteTimeout
	if cfg.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = cfg.ShutdownTimeout
	}
	sc.CORSOrigins = cfg.CORSOrigins
	return sc
}

// Address returns the host:port listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server represents the HTTP server.
type Server struct {
	config     ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with the given configuration.
// The version parameter is used in the OpenAPI document.
func NewServer(cfg ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger, "/livez", "/readyz", MetricsPath))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORSWithConfig(middleware.CORSFromOrigins(cfg.CORSOrigins)))
	router.Use(middleware.SkipCompressionForSSE(chimiddleware.Compress(5)))

	router.Handle(MetricsPath, promhttp.Handler())

	humaConfig := huma.DefaultConfig("tvplay API", version)
	humaConfig.Info.Description = "IPTV playlist viewer and headless player"

	api := humachi.New(router, humaConfig)

	return &Server{
		config: cfg,
		router: router,
		api:    api,
		httpServer: &http.Server{
			Addr:         cfg.Address(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger.With(slog.String("component", "http")),
	}
}

// API returns the Huma API instance for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the Chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		slog.String("address", s.httpServer.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server",
		slog.Duration("timeout", s.config.ShutdownTimeout),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ListenAndServe starts the server and handles graceful shutdown.
// It blocks until the server is shut down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
