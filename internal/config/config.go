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

package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passpoll/pkg/session"
	"github.com/jeremyhahn/go-passpoll/pkg/storage"
	"github.com/jeremyhahn/go-passpoll/pkg/webauthn"
)

// Defaults used when neither the file nor the environment sets a value.
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 3000
	DefaultRPID         = "localhost"
	DefaultRPOrigin     = "http://localhost:3000"
	DefaultRPName       = "Passpoll"
	DefaultDatabaseURI  = "mongodb://localhost:27017/?directConnection=true"
	DefaultMetricsPath  = "/metrics"
	DefaultHealthPath   = "/health"
	DefaultLiveInterval = 5 * time.Second
	DefaultExpiryTick   = 30 * time.Second
)

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	WebAuthn webauthn.Config `yaml:"webauthn"`
	Session  SessionConfig   `yaml:"session"`
	Storage  storage.Config  `yaml:"database"`
	Polls    PollsConfig     `yaml:"polls"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Health   HealthConfig    `yaml:"health"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// AllowedOrigins feeds the CORS middleware. Empty means "*".
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig controls bearer token signing
type SessionConfig struct {
	Secret   string        `yaml:"secret"`
	Lifetime time.Duration `yaml:"lifetime"`
}

// PollsConfig controls background poll maintenance and live results
type PollsConfig struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
	LiveInterval   time.Duration `yaml:"live_interval"`
}

// MetricsConfig controls metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls health check endpoint
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		WebAuthn: webauthn.Config{
			RPID:          DefaultRPID,
			RPDisplayName: DefaultRPName,
			RPOrigins:     []string{DefaultRPOrigin},
		},
		Session: SessionConfig{
			Lifetime: session.DefaultLifetime,
		},
		Storage: storage.Config{
			Backend:  storage.BackendMongoDB,
			URI:      DefaultDatabaseURI,
			Database: "polling_application",
			Timeout:  10 * time.Second,
		},
		Polls: PollsConfig{
			ExpiryInterval: DefaultExpiryTick,
			LiveInterval:   DefaultLiveInterval,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Health: HealthConfig{
			Enabled: true,
			Path:    DefaultHealthPath,
		},
	}
}

// Load reads configuration from a YAML file, if path is not empty, on top
// of the defaults and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.WebAuthn.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			log.Printf("Warning: invalid PORT value %q, using %d", p, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if uri := os.Getenv("DATABASE_URI"); uri != "" {
		cfg.Storage.URI = uri
	}
	if name := os.Getenv("DATABASE_NAME"); name != "" {
		cfg.Storage.Database = name
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = strings.ToLower(backend)
	}

	if id := os.Getenv("WEBAUTHN_ID"); id != "" {
		cfg.WebAuthn.RPID = id
	}
	if origin := os.Getenv("WEBAUTHN_ORIGIN"); origin != "" {
		cfg.WebAuthn.RPOrigins = splitList(origin)
	}
	if name := os.Getenv("WEBAUTHN_NAME"); name != "" {
		cfg.WebAuthn.RPDisplayName = name
	}

	if secret := os.Getenv("SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.WebAuthn.Validate(); err != nil {
		return fmt.Errorf("webauthn: %w", err)
	}

	if c.Session.Lifetime < 0 {
		return fmt.Errorf("session lifetime must not be negative")
	}

	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendMongoDB, "":
		u, err := url.Parse(c.Storage.URI)
		if err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			return fmt.Errorf("invalid database uri: %q", c.Storage.URI)
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Polls.ExpiryInterval < 0 || c.Polls.LiveInterval < 0 {
		return fmt.Errorf("poll intervals must not be negative")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %q", c.Metrics.Path)
	}
	if c.Health.Enabled && !strings.HasPrefix(c.Health.Path, "/") {
		return fmt.Errorf("health path must start with /: %q", c.Health.Path)
	}

	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// UsingDefaultSecret reports whether tokens will be signed with the
// built-in development secret.
func (c *Config) UsingDefaultSecret() bool {
	return c.Session.Secret == "" || c.Session.Secret == session.DefaultSecret
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
