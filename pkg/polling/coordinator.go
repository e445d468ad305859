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
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/metrics"
)

// Coordinator records votes so that each user counts at most once per poll.
type Coordinator struct {
	users  UserRepository
	polls  PollRepository
	logger logger.Logger
	now    func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorClock overrides the clock used for expiry checks.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a vote coordinator over the given repositories.
func NewCoordinator(users UserRepository, polls PollRepository, log logger.Logger, opts ...CoordinatorOption) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Coordinator{
		users:  users,
		polls:  polls,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CastVote records req.Username's vote for req.OptionID on req.PollID.
//
// The user-side history entry is written first with a conditional push, then
// the poll is updated conditionally. If the poll update is rejected the
// history entry is removed again, so a failed vote leaves neither side
// changed.
func (c *Coordinator) CastVote(ctx context.Context, req VoteRequest) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpVote, "coordinator", statusOf(err), time.Since(start))
	}()

	if req.Username == "" {
		return InvalidInput("username is required")
	}

	poll, err := c.polls.GetPoll(ctx, req.PollID)
	if err != nil {
		return err
	}
	if !poll.HasOption(req.OptionID) {
		return InvalidInput("poll %d has no option %d", req.PollID, req.OptionID)
	}
	if !poll.AcceptsVotes(c.now()) {
		return fmt.Errorf("%w: poll %d is %s", ErrAlreadyVoted, req.PollID, poll.Status)
	}

	voted, err := c.users.HasVoted(ctx, req.Username, req.PollID)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}

	vote := Vote{PollID: req.PollID, OptionID: req.OptionID}
	if err := c.users.AddVote(ctx, req.Username, vote); err != nil {
		return err
	}

	if err := c.polls.VotePoll(ctx, req.PollID, req.OptionID, req.Username, c.now()); err != nil {
		if cerr := c.users.RemoveVote(ctx, req.Username, req.PollID); cerr != nil {
			c.logger.Error("failed to compensate vote history",
				logger.String("user_name", req.Username),
				logger.Int64("poll_id", req.PollID),
				logger.Error(cerr))
		}
		return err
	}

	metrics.RecordVote()
	c.logger.Debug("vote recorded",
		logger.String("user_name", req.Username),
		logger.Int64("poll_id", req.PollID),
		logger.Int64("option_id", req.OptionID))
	return nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrInvalidInput):
		return metrics.StatusRejected
	default:
		return metrics.StatusError
	}
}
