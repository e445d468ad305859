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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
	"github.com/jeremyhahn/go-passpoll/pkg/session"
)

// Sentinel errors for ceremony operations.
var (
	// ErrUnknown is returned when the WebAuthn library fails to produce options.
	ErrUnknown = errors.New("unknown webauthn error")

	// ErrCorruptSession is returned when no live ceremony matches a finish call.
	ErrCorruptSession = errors.New("corrupt session")

	// ErrBadRequest is returned when an authenticator response fails verification.
	ErrBadRequest = errors.New("bad request")

	// ErrClonedAuthenticator is returned when the signature counter indicates
	// a cloned authenticator. It matches ErrBadRequest.
	ErrClonedAuthenticator = fmt.Errorf("%w: cloned authenticator detected", ErrBadRequest)

	// Errors shared with the repositories and the token issuer.
	ErrUserNotFound      = polling.ErrUserNotFound
	ErrUserAlreadyExists = polling.ErrUserAlreadyExists
	ErrInvalidInput      = polling.ErrInvalidInput
	ErrDatabase          = polling.ErrDatabase
	ErrToken             = session.ErrToken
)

// CeremonyError wraps an error with the ceremony step that failed.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{Op: op, Err: err}
}

// classify wraps cause with the sentinel kind unless cause already matches it.
func classify(op string, kind, cause error) error {
	if cause == nil {
		return NewError(op, kind)
	}
	if errors.Is(cause, kind) {
		return NewError(op, cause)
	}
	return NewError(op, fmt.Errorf("%w: %w", kind, cause))
}

// IsCorruptSession returns true if the error indicates a missing or expired ceremony.
func IsCorruptSession(err error) bool {
	return errors.Is(err, ErrCorruptSession)
}

// IsBadRequest returns true if the error indicates a rejected authenticator response.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsUnknown returns true if the error indicates a library failure.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknown)
}
