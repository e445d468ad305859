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

package webauthn

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// RegistrationCeremony is the server-side state of a started registration.
type RegistrationCeremony struct {
	Username string
	UserID   string
	State    *webauthn.SessionData
}

// AuthenticationCeremony is the server-side state of a started login.
type AuthenticationCeremony struct {
	UserID string
	State  *webauthn.SessionData
}

// RegistrationStore holds registration ceremonies keyed by nonce.
type RegistrationStore = ChallengeStore[RegistrationCeremony]

// AuthenticationStore holds authentication ceremonies keyed by user id.
type AuthenticationStore = ChallengeStore[AuthenticationCeremony]

type challengeEntry[T any] struct {
	value     T
	createdAt time.Time
}

// ChallengeStore is a mutex-guarded map of pending ceremonies whose entries
// become invisible once older than the TTL. Expired entries are physically
// removed by CleanupExpired.
type ChallengeStore[T any] struct {
	mu      sync.Mutex
	entries map[string]challengeEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

// ChallengeStoreOption configures a ChallengeStore.
type ChallengeStoreOption func(*challengeStoreOptions)

type challengeStoreOptions struct {
	now func() time.Time
}

// WithStoreClock overrides the clock used for entry ages.
func WithStoreClock(now func() time.Time) ChallengeStoreOption {
	return func(o *challengeStoreOptions) {
		o.now = now
	}
}

// NewChallengeStore creates a store whose entries live for ttl.
// A non-positive ttl means DefaultChallengeTTL.
func NewChallengeStore[T any](ttl time.Duration, opts ...ChallengeStoreOption) *ChallengeStore[T] {
	o := challengeStoreOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore[T]{
		entries: make(map[string]challengeEntry[T]),
		ttl:     ttl,
		now:     o.now,
	}
}

// TTL returns the entry lifetime.
func (s *ChallengeStore[T]) TTL() time.Duration {
	return s.ttl
}

// Insert stores value under key, replacing any previous entry.
func (s *ChallengeStore[T]) Insert(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = challengeEntry[T]{value: value, createdAt: s.now()}
}

// Get returns the value stored under key if it has not expired.
func (s *ChallengeStore[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || s.expired(entry) {
		var zero T
		return zero, false
	}
	return entry.value, true
}

// Take returns and removes the value stored under key. An expired entry is
// removed and reported as missing.
func (s *ChallengeStore[T]) Take(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	delete(s.entries, key)
	if !ok || s.expired(entry) {
		var zero T
		return zero, false
	}
	return entry.value, true
}

// Remove deletes the entry under key. Idempotent.
func (s *ChallengeStore[T]) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// CleanupExpired deletes expired entries and returns how many were removed.
func (s *ChallengeStore[T]) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Count returns the number of stored entries, expired or not.
func (s *ChallengeStore[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes every entry.
func (s *ChallengeStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]challengeEntry[T])
}

// StartCleanupRoutine starts a background goroutine that calls
// CleanupExpired every interval and passes the result to onSweep, which may
// be nil. Call the returned cancel function to stop the routine.
func (s *ChallengeStore[T]) StartCleanupRoutine(ctx context.Context, interval time.Duration, onSweep func(removed int)) context.CancelFunc {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.CleanupExpired()
				if onSweep != nil {
					onSweep(removed)
				}
			}
		}
	}()

	return cancel
}

// expired must be called with s.mu held.
func (s *ChallengeStore[T]) expired(entry challengeEntry[T]) bool {
	return s.now().Sub(entry.createdAt) > s.ttl
}

// NewNonce returns 32 random hex characters used as a registration key.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
