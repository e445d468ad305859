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

// Package storage selects and opens the repository backend used by the
// server. Backends implement both repository interfaces of package polling.
package storage

import (
	"context"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

// Backend defines the interface for storage backends.
// All implementations must be safe for concurrent use.
type Backend interface {
	polling.UserRepository
	polling.PollRepository

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
