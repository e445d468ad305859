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

package http

// HeaderSessionID carries the registration nonce from start_reg to
// finish_reg.
const HeaderSessionID = "X-Session-Id"

// MessageRegistered is the JSON string returned by a successful finish_reg.
const MessageRegistered = "Registration successful"

// TokenResponse is the response after a successful login.
type TokenResponse struct {
	// Token is the HS256 session token.
	Token string `json:"token"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidSession = "invalid_session"
	ErrorCodeBadRequest     = "bad_request"
	ErrorCodeUserNotFound   = "user_not_found"
	ErrorCodeUserExists     = "user_exists"
	ErrorCodeDatabase       = "database_error"
	ErrorCodeToken          = "token_error"
	ErrorCodeInternalError  = "internal_error"
)
