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

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/storage/memory"
	"github.com/jeremyhahn/go-passpoll/pkg/storage/mongo"
)

// Supported backends.
const (
	BackendMongoDB = "mongodb"
	BackendMemory  = "memory"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is "mongodb" (default) or "memory".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// URI is the MongoDB connection string.
	URI string `yaml:"uri" mapstructure:"uri"`

	// Database is the MongoDB database name.
	Database string `yaml:"name" mapstructure:"name"`

	// Timeout bounds connection setup.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Backend, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch cfg.Backend {
	case BackendMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case BackendMongoDB, "":
		s, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.URI,
			Database: cfg.Database,
			Timeout:  cfg.Timeout,
		}, mongo.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

var (
	_ Backend = (*memory.Storage)(nil)
	_ Backend = (*mongo.Storage)(nil)
)
