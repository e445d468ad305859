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

// Package memory provides in-memory implementations of
// polling.UserRepository and polling.PollRepository. A single RWMutex
// serialises every write, which gives the same per-document atomicity the
// MongoDB backend relies on. Values are deep-copied on the way in and out.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory storage is closed")

// Storage is an in-memory user and poll store.
type Storage struct {
	mu     sync.RWMutex
	users  map[string]*polling.User // by user_name
	polls  map[int64]*polling.Poll
	nextID int64
	closed bool
	now    func() time.Time
}

// Option configures a Storage.
type Option func(*Storage)

// WithClock overrides the clock used for poll creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Storage {
	s := &Storage{
		users: make(map[string]*polling.User),
		polls: make(map[int64]*polling.Poll),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the store is open.
func (s *Storage) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close releases the stored data. Later calls return ErrClosed.
// Multiple calls to Close are safe.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.users = nil
	s.polls = nil
	return nil
}

// checkOpen must be called with s.mu held.
func (s *Storage) checkOpen(op string) error {
	if s.closed {
		return polling.NewStoreError(op, ErrClosed)
	}
	return nil
}

var (
	_ polling.UserRepository = (*Storage)(nil)
	_ polling.PollRepository = (*Storage)(nil)
)
