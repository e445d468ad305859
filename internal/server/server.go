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

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-passpoll/internal/config"
	"github.com/jeremyhahn/go-passpoll/internal/rest"
	"github.com/jeremyhahn/go-passpoll/pkg/adapters/auth"
	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/health"
	"github.com/jeremyhahn/go-passpoll/pkg/metrics"
	"github.com/jeremyhahn/go-passpoll/pkg/polling"
	"github.com/jeremyhahn/go-passpoll/pkg/session"
	"github.com/jeremyhahn/go-passpoll/pkg/storage"
	"github.com/jeremyhahn/go-passpoll/pkg/webauthn"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Server owns every long-lived component of a running passpoll instance.
type Server struct {
	config *config.Config
	logger logger.Logger

	store      storage.Backend
	tokens     *session.Issuer
	ceremonies *webauthn.Service
	polls      *polling.Service

	healthChecker    *health.Checker
	restServer       *rest.Server
	metricsCollector *metrics.ResourceCollector

	stopCleanup context.CancelFunc
	stopExpiry  context.CancelFunc

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	errCh    chan error
	stopOnce sync.Once
}

// New opens storage and builds the services and the HTTP server described
// by cfg. Nothing is started until Start is called.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	log := NewLogger(cfg.Logging)

	store, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	s, err := newWithStore(cfg, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

func newWithStore(cfg *config.Config, store storage.Backend, log logger.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: cfg,
		logger: log,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
		errCh:  make(chan error, 1),
	}

	s.tokens = session.NewIssuer(session.Config{
		Secret:   cfg.Session.Secret,
		Lifetime: cfg.Session.Lifetime,
	})
	if s.tokens.UsingDefaultSecret() {
		log.Warn("SECRET is not set, signing tokens with the development default")
	}

	webauthnCfg := cfg.WebAuthn
	var err error
	s.ceremonies, err = webauthn.NewService(webauthn.ServiceParams{
		Config: &webauthnCfg,
		Users:  store,
		Tokens: s.tokens,
		Logger: log.With(logger.String("component", "webauthn")),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize webauthn: %w", err)
	}

	s.polls, err = polling.NewService(polling.ServiceParams{
		Users:  store,
		Polls:  store,
		Logger: log.With(logger.String("component", "polling")),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize polling: %w", err)
	}

	s.initializeHealth()

	bearer, err := auth.NewBearerAuthenticator(s.tokens)
	if err != nil {
		cancel()
		return nil, err
	}

	restCfg := &rest.Config{
		Addr:           cfg.Address(),
		WebAuthn:       s.ceremonies,
		Polls:          s.polls,
		Authenticator:  bearer,
		Logger:         log,
		LiveInterval:   cfg.Polls.LiveInterval,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	}
	if cfg.Health.Enabled {
		restCfg.Health = s.healthChecker
		restCfg.HealthPath = cfg.Health.Path
	}
	if cfg.Metrics.Enabled {
		restCfg.MetricsPath = cfg.Metrics.Path
	}
	s.restServer, err = rest.NewServer(restCfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create REST server: %w", err)
	}

	return s, nil
}

// NewLogger builds the slog-backed logger described by cfg.
func NewLogger(cfg config.LoggingConfig) logger.Logger {
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  logger.ParseLevel(cfg.Level),
		Format: cfg.Format,
		Output: os.Stdout,
	})
}

func (s *Server) initializeHealth() {
	s.healthChecker = health.NewChecker()
	name := "storage-" + s.config.Storage.Backend
	if s.config.Storage.Backend == "" {
		name = "storage-" + storage.BackendMongoDB
	}
	s.healthChecker.RegisterCheck(name, health.PingCheck(name, s.store, health.DefaultCheckTimeout))
}

// Start launches the background loops and the HTTP listener. It returns
// once everything is running; listener failures are reported on Errors.
func (s *Server) Start() error {
	s.logger.Info("Starting passpoll server", logger.String("version", BuildVersion()))

	if s.config.Metrics.Enabled {
		metrics.Enable()
		s.metricsCollector = metrics.StartResourceCollector(s.ctx, 30*time.Second, s.samplePending)
	} else {
		metrics.Disable()
	}

	s.stopCleanup = s.ceremonies.StartCleanup(s.ctx)
	s.stopExpiry = s.polls.StartExpirySweeper(s.ctx, s.config.Polls.ExpiryInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.restServer.Start(); err != nil {
			s.logger.Error("REST server error", logger.Error(err))
			s.errCh <- err
		}
	}()

	s.healthChecker.MarkStarted()
	s.logger.Info("Server started", logger.String("addr", s.restServer.Addr()))
	return nil
}

func (s *Server) samplePending() {
	metrics.SetPendingChallenges(metrics.CeremonyRegistration, s.ceremonies.Registrations().Count())
	metrics.SetPendingChallenges(metrics.CeremonyAuthentication, s.ceremonies.Authentications().Count())
}

// Errors delivers a fatal listener error, if one occurs.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.restServer.Handler()
}

// Shutdown stops the listener, the background loops and closes storage.
// It is safe to call more than once.
func (s *Server) Shutdown() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *Server) shutdown() error {
	s.logger.Info("Shutting down server...")
	s.healthChecker.MarkStopping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.restServer.Stop(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down REST server", logger.Error(err))
	}

	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	if s.stopExpiry != nil {
		s.stopExpiry()
	}
	if s.metricsCollector != nil {
		s.metricsCollector.Stop()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("Shutdown timeout exceeded, forcing stop")
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("Error closing storage", logger.Error(err))
		return fmt.Errorf("failed to close storage: %w", err)
	}

	s.logger.Info("Server shutdown complete")
	return nil
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// BuildVersion returns the module version or VCS revision embedded at
// build time.
func BuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
