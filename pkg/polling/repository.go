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
)

// UserRepository persists users, their passkeys and their vote history.
// Backend failures are returned as errors matching ErrDatabase.
type UserRepository interface {
	// CreateUser stores a new user.
	// Returns ErrUserAlreadyExists if the name or id is taken.
	CreateUser(ctx context.Context, user *User) (*User, error)

	// GetUser retrieves a user by name.
	// Returns ErrUserNotFound if the user does not exist.
	GetUser(ctx context.Context, username string) (*User, error)

	// GetUserByID retrieves a user by its UUID string.
	// Returns ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, userID string) (*User, error)

	// UpdateCredentials replaces the passkeys of a user.
	// Returns ErrUserNotFound if the user does not exist.
	UpdateCredentials(ctx context.Context, username string, keys []Passkey) error

	// DeleteUser removes a user by id.
	// Returns ErrUserNotFound if the user does not exist.
	DeleteUser(ctx context.Context, userID string) error

	// AddVote appends vote to the user's history unless the history already
	// holds an entry for the same poll. Returns ErrAlreadyVoted in that case
	// and ErrUserNotFound if the user does not exist.
	AddVote(ctx context.Context, username string, vote Vote) error

	// RemoveVote drops the history entry for pollID. Idempotent.
	RemoveVote(ctx context.Context, username string, pollID int64) error

	// HasVoted reports whether the user's history holds an entry for pollID.
	HasVoted(ctx context.Context, username string, pollID int64) (bool, error)

	// AddOwnedPoll records pollID as created by the user.
	// Returns ErrUserNotFound if the user does not exist.
	AddOwnedPoll(ctx context.Context, username string, pollID int64) error

	// ClearVotes removes pollID from every user's vote history.
	ClearVotes(ctx context.Context, pollID int64) error

	// RemovePoll removes pollID from every user's owned polls and vote history.
	RemovePoll(ctx context.Context, pollID int64) error
}

// PollRepository persists polls.
// Backend failures are returned as errors matching ErrDatabase.
type PollRepository interface {
	// CreatePoll allocates the next poll id and stores a new Active poll.
	CreatePoll(ctx context.Context, input PollInput) (*Poll, error)

	// FetchAll returns every poll ordered by id.
	FetchAll(ctx context.Context) ([]*Poll, error)

	// GetPoll retrieves a poll by id.
	// Returns ErrPollNotFound if the poll does not exist.
	GetPoll(ctx context.Context, pollID int64) (*Poll, error)

	// UpdatePoll applies an owner operation atomically.
	// Returns ErrPollNotFound if the poll does not exist.
	UpdatePoll(ctx context.Context, pollID int64, op PollOp) error

	// DeletePoll removes a poll.
	// Returns ErrPollNotFound if the poll does not exist.
	DeletePoll(ctx context.Context, pollID int64) error

	// VotePoll increments optionID and appends username to the voter list in
	// a single conditional update. The update only applies while the poll is
	// Active, not expired at now, names optionID and does not list username.
	// Returns ErrAlreadyVoted when nothing matched.
	VotePoll(ctx context.Context, pollID, optionID int64, username string, now time.Time) error

	// ExpirePolls moves every Active poll whose expiration date is at or
	// before now to Expired and returns how many were changed.
	ExpirePolls(ctx context.Context, now time.Time) (int, error)
}
