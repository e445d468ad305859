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

package polling

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
)

const (
	// DefaultExpiryInterval is how often StartExpirySweeper checks for expired polls.
	DefaultExpiryInterval = 30 * time.Second

	// expiryErrorLogInterval bounds how often a failing sweep is logged.
	expiryErrorLogInterval = 5 * time.Minute
)

// StartExpirySweeper starts a background goroutine that periodically moves
// polls past their expiration date to Expired. Call the returned cancel
// function, or cancel ctx, to stop it.
func (s *Service) StartExpirySweeper(ctx context.Context, interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		interval = DefaultExpiryInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	logFailure := &rate.Sometimes{First: 1, Interval: expiryErrorLogInterval}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExpirePolls(ctx); err != nil && ctx.Err() == nil {
					logFailure.Do(func() {
						s.logger.Error("poll expiry sweep failed", logger.Error(err))
					})
				}
			}
		}
	}()

	return cancel
}
