// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passpoll.
//
// go-passpoll is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/auth"
	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/metrics"
	"github.com/jeremyhahn/go-passpoll/pkg/polling"
	pollhttp "github.com/jeremyhahn/go-passpoll/pkg/polling/http"
	"github.com/jeremyhahn/go-passpoll/pkg/webauthn"
	webauthnhttp "github.com/jeremyhahn/go-passpoll/pkg/webauthn/http"
)

// Literal bodies of the index routes.
const (
	WelcomeMessage = "Welcome"
	APIMessage     = "API is running."
)

// Server represents the REST API server.
type Server struct {
	server        *http.Server
	router        *chi.Mux
	addr          string
	authenticator auth.Authenticator
	health        HealthChecker
	logger        logger.Logger
	polls         *pollhttp.Handler
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string

	// WebAuthn runs the registration and login ceremonies. Required.
	WebAuthn *webauthn.Service

	// Polls serves the poll routes. Required.
	Polls *polling.Service

	// Authenticator guards the poll routes. Required.
	Authenticator auth.Authenticator

	// Health backs the health endpoints. Optional.
	Health HealthChecker

	// Logger is the logging adapter (optional, defaults to text slog)
	Logger logger.Logger

	// LiveInterval is the SSE frame interval for live results.
	LiveInterval time.Duration

	// AllowedOrigins restricts CORS. Empty allows any origin.
	AllowedOrigins []string

	// MetricsPath mounts the Prometheus handler when not empty.
	MetricsPath string

	// HealthPath is the prefix of the health endpoints. Defaults to /health.
	HealthPath string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.WebAuthn == nil || cfg.Polls == nil {
		return nil, fmt.Errorf("webauthn and polling services are required")
	}
	if cfg.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{Level: logger.LevelInfo})
	}

	s := &Server{
		addr:          cfg.Addr,
		authenticator: cfg.Authenticator,
		health:        cfg.Health,
		logger:        log,
	}
	s.router = s.setupRouter(cfg)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	// Live-results streams never go idle on their own.
	s.server.RegisterOnShutdown(s.polls.CloseStreams)

	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(cfg *Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/", text(WelcomeMessage))

	r.Get(cfg.HealthPath, s.HealthHandler)
	r.Head(cfg.HealthPath, s.HealthHandler)
	r.Get(cfg.HealthPath+"/live", s.LivenessHandler)
	r.Get(cfg.HealthPath+"/ready", s.ReadinessHandler)

	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	ceremonies := webauthnhttp.NewHandler(cfg.WebAuthn).WithLogger(s.logger)
	polls := pollhttp.NewHandler(cfg.Polls).WithLogger(s.logger)
	if cfg.LiveInterval > 0 {
		polls = polls.WithLiveInterval(cfg.LiveInterval)
	}

	s.polls = polls

	r.Route("/api", func(r chi.Router) {
		r.Get("/", message(APIMessage))

		r.Route("/auth", func(r chi.Router) {
			webauthnhttp.MountChi(r, ceremonies)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.AuthenticationMiddleware())
			pollhttp.MountChi(r, polls)
		})
	})

	return r
}

// message responds with body encoded as a JSON string.
func message(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, body, http.StatusOK)
	}
}

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server",
		logger.String("addr", ln.Addr().String()),
		logger.String("auth", s.authenticator.Name()))

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
