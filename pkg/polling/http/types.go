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

import "time"

// DefaultLiveInterval is how often live results are pushed.
const DefaultLiveInterval = 5 * time.Second

// Literal response bodies.
const (
	MessageVoteCast     = "Vote cast successfully"
	MessageAlreadyVoted = "User has already voted in this poll"
	MessagePollReset    = "Poll reset successfully"
	MessagePollClosed   = "Poll closed successfully"
	MessagePollDeleted  = "Poll deleted successfully"
	MessagePollGone     = "Poll not found. It might have been deleted or never created."
	MessageStreamGone   = "Poll not found"
)

// MessageResponse is the response of a successful vote.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code, or a literal message for vote rejections.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message,omitempty"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeForbidden      = "forbidden"
	ErrorCodePollNotFound   = "poll_not_found"
	ErrorCodeUserNotFound   = "user_not_found"
	ErrorCodeDatabase       = "database_error"
	ErrorCodeInternalError  = "internal_error"
)
