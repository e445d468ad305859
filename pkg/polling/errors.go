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
	"errors"
	"fmt"
)

// Sentinel errors for polling operations.
var (
	// ErrUserNotFound is returned when no user has the requested name or id.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when a user name or id is already taken.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrPollNotFound is returned when no poll has the requested id.
	ErrPollNotFound = errors.New("poll not found")

	// ErrAlreadyVoted is returned when the user already voted on the poll
	// or the poll no longer accepts votes.
	ErrAlreadyVoted = errors.New("user has already voted in this poll")

	// ErrInvalidInput is returned for malformed client input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when the caller does not own the user it
	// acts for.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when a caller acts on a poll it does not own.
	ErrForbidden = errors.New("forbidden")

	// ErrDatabase is matched by every error returned by a repository backend.
	ErrDatabase = errors.New("database error")
)

// StoreError wraps a backend failure with the repository operation that
// produced it. It matches ErrDatabase with errors.Is.
type StoreError struct {
	Op  string // Repository operation that failed
	Err error  // Underlying driver error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDatabase.
func (e *StoreError) Is(target error) bool {
	return target == ErrDatabase
}

// NewStoreError wraps err as a StoreError. It returns nil when err is nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// InvalidInput returns an error matching ErrInvalidInput with a detail message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsPollNotFound returns true if the error indicates a poll was not found.
func IsPollNotFound(err error) bool {
	return errors.Is(err, ErrPollNotFound)
}

// IsAlreadyVoted returns true if the error indicates a rejected duplicate vote.
func IsAlreadyVoted(err error) bool {
	return errors.Is(err, ErrAlreadyVoted)
}

// IsDatabase returns true if the error came from a repository backend.
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}
