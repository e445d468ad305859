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
	"slices"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/metrics"
)

const (
	// MaxTitleLength bounds poll titles.
	MaxTitleLength = 200

	// MaxOptions bounds the number of options of a poll.
	MaxOptions = 50
)

// ServiceParams holds the dependencies of a Service.
type ServiceParams struct {
	Users       UserRepository
	Polls       PollRepository
	Coordinator *Coordinator
	Logger      logger.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service implements poll management on top of the repositories.
type Service struct {
	users       UserRepository
	polls       PollRepository
	coordinator *Coordinator
	logger      logger.Logger
	now         func() time.Time
}

// NewService creates a poll service. A Coordinator is built from the
// repositories when none is given.
func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil || params.Polls == nil {
		return nil, errors.New("polling: users and polls repositories are required")
	}
	log := params.Logger
	if log == nil {
		log = logger.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	coord := params.Coordinator
	if coord == nil {
		coord = NewCoordinator(params.Users, params.Polls, log, WithCoordinatorClock(now))
	}
	return &Service{
		users:       params.Users,
		polls:       params.Polls,
		coordinator: coord,
		logger:      log,
		now:         now,
	}, nil
}

// CreatePoll validates input, stores a new Active poll and records it as
// owned by its creator.
func (s *Service) CreatePoll(ctx context.Context, input PollInput) (*Poll, error) {
	start := time.Now()
	poll, err := s.createPoll(ctx, input)
	metrics.RecordOperation(metrics.OpCreatePoll, "service", metrics.StatusOf(err), time.Since(start))
	return poll, err
}

func (s *Service) createPoll(ctx context.Context, input PollInput) (*Poll, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, input.Creator); err != nil {
		return nil, err
	}

	poll, err := s.polls.CreatePoll(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.users.AddOwnedPoll(ctx, input.Creator, poll.PollID); err != nil {
		s.logger.ErrorContext(ctx, "failed to record poll owner",
			logger.Int64("poll_id", poll.PollID),
			logger.String("user_name", input.Creator),
			logger.Error(err))
		return nil, err
	}

	s.logger.InfoContext(ctx, "poll created",
		logger.Int64("poll_id", poll.PollID),
		logger.String("creator", poll.Creator),
		logger.Int("options", len(poll.Options)))
	return poll, nil
}

func (s *Service) validate(input *PollInput) error {
	input.Options = slices.Clone(input.Options)
	input.Title = strings.TrimSpace(input.Title)
	input.Creator = strings.TrimSpace(input.Creator)

	switch {
	case input.Title == "":
		return InvalidInput("title is required")
	case len(input.Title) > MaxTitleLength:
		return InvalidInput("title exceeds %d characters", MaxTitleLength)
	case input.Creator == "":
		return InvalidInput("creator is required")
	case len(input.Options) == 0:
		return InvalidInput("at least one option is required")
	case len(input.Options) > MaxOptions:
		return InvalidInput("at most %d options are allowed", MaxOptions)
	}
	for i := range input.Options {
		input.Options[i].Text = strings.TrimSpace(input.Options[i].Text)
		if input.Options[i].Text == "" {
			return InvalidInput("option %d has no text", i+1)
		}
	}
	if input.ExpirationDate != nil && !input.ExpirationDate.After(s.now()) {
		return InvalidInput("expiration date must be in the future")
	}
	return nil
}

// GetPoll returns a poll by id.
func (s *Service) GetPoll(ctx context.Context, pollID int64) (*Poll, error) {
	return s.polls.GetPoll(ctx, pollID)
}

// ListPolls returns every poll ordered by id.
func (s *Service) ListPolls(ctx context.Context) ([]*Poll, error) {
	return s.polls.FetchAll(ctx)
}

// Results returns the current tally of a poll.
func (s *Service) Results(ctx context.Context, pollID int64) (*Poll, error) {
	return s.polls.GetPoll(ctx, pollID)
}

// CastVote records a vote. See Coordinator.CastVote.
func (s *Service) CastVote(ctx context.Context, req VoteRequest) error {
	return s.coordinator.CastVote(ctx, req)
}

// CastVoteAs records a vote on behalf of callerID, which must be the user id
// of req.Username.
func (s *Service) CastVoteAs(ctx context.Context, callerID string, req VoteRequest) error {
	if req.Username == "" {
		return InvalidInput("username is required")
	}
	user, err := s.users.GetUser(ctx, req.Username)
	if err != nil {
		if IsUserNotFound(err) {
			return ErrUnauthorized
		}
		return err
	}
	if callerID == "" || user.UserID != callerID {
		s.logger.WarnContext(ctx, "rejected vote for another user",
			logger.String("user_name", req.Username),
			logger.String("caller", callerID))
		return ErrUnauthorized
	}
	return s.coordinator.CastVote(ctx, req)
}

// ResetPoll zeroes the tallies of a poll owned by callerID and forgets who
// voted, so every user may vote again. The poll is reset before the users'
// histories; a vote landing in between is kept by the poll but not by the
// voter's history, and the poll still rejects a second vote from them.
func (s *Service) ResetPoll(ctx context.Context, callerID string, pollID int64) error {
	return s.ownerOp(ctx, metrics.OpUpdatePoll, callerID, pollID, func() error {
		if err := s.polls.UpdatePoll(ctx, pollID, OpReset); err != nil {
			return err
		}
		return s.users.ClearVotes(ctx, pollID)
	})
}

// ClosePoll moves a poll owned by callerID to Closed. Closing a closed
// poll succeeds.
func (s *Service) ClosePoll(ctx context.Context, callerID string, pollID int64) error {
	return s.ownerOp(ctx, metrics.OpUpdatePoll, callerID, pollID, func() error {
		return s.polls.UpdatePoll(ctx, pollID, OpClose)
	})
}

// DeletePoll removes a poll owned by callerID and every user reference to it.
func (s *Service) DeletePoll(ctx context.Context, callerID string, pollID int64) error {
	return s.ownerOp(ctx, metrics.OpDeletePoll, callerID, pollID, func() error {
		if err := s.polls.DeletePoll(ctx, pollID); err != nil {
			return err
		}
		return s.users.RemovePoll(ctx, pollID)
	})
}

// ownerOp runs fn after checking that callerID is the user id of the poll's
// creator.
func (s *Service) ownerOp(ctx context.Context, op, callerID string, pollID int64, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(op, "service", metrics.StatusOf(err), time.Since(start))
	}()

	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	owner, err := s.users.GetUser(ctx, poll.Creator)
	if err != nil {
		if IsUserNotFound(err) {
			return ErrForbidden
		}
		return err
	}
	if callerID == "" || owner.UserID != callerID {
		s.logger.WarnContext(ctx, "rejected poll operation by non-owner",
			logger.String("operation", op),
			logger.Int64("poll_id", pollID),
			logger.String("caller", callerID))
		return ErrForbidden
	}
	if err := fn(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "poll updated",
		logger.String("operation", op),
		logger.Int64("poll_id", pollID))
	return nil
}

// ExpirePolls moves every Active poll past its expiration date to Expired.
func (s *Service) ExpirePolls(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.polls.ExpirePolls(ctx, s.now())
	metrics.RecordOperation(metrics.OpExpirePolls, "service", metrics.StatusOf(err), time.Since(start))
	if err != nil {
		return 0, err
	}
	metrics.RecordExpiredPolls(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "polls expired", logger.Int("count", n))
	}
	return n, nil
}
