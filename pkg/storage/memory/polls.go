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

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

// CreatePoll allocates the next poll id and stores a new Active poll.
func (s *Storage) CreatePoll(_ context.Context, input polling.PollInput) (*polling.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("create poll"); err != nil {
		return nil, err
	}
	s.nextID++
	poll := polling.NewPoll(s.nextID, input, s.now())
	s.polls[poll.PollID] = poll
	return poll.Clone(), nil
}

// FetchAll returns copies of every poll ordered by id.
func (s *Storage) FetchAll(_ context.Context) ([]*polling.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("fetch polls"); err != nil {
		return nil, err
	}
	polls := make([]*polling.Poll, 0, len(s.polls))
	for _, p := range s.polls {
		polls = append(polls, p.Clone())
	}
	sort.Slice(polls, func(i, j int) bool { return polls[i].PollID < polls[j].PollID })
	return polls, nil
}

// GetPoll retrieves a copy of a poll.
func (s *Storage) GetPoll(_ context.Context, pollID int64) (*polling.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get poll"); err != nil {
		return nil, err
	}
	p, ok := s.polls[pollID]
	if !ok {
		return nil, polling.ErrPollNotFound
	}
	return p.Clone(), nil
}

// UpdatePoll applies op to a poll.
func (s *Storage) UpdatePoll(_ context.Context, pollID int64, op polling.PollOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("update poll"); err != nil {
		return err
	}
	p, ok := s.polls[pollID]
	if !ok {
		return polling.ErrPollNotFound
	}
	switch op {
	case polling.OpReset:
		for i := range p.Options {
			p.Options[i].Votes = 0
		}
		p.UsersVoted = []string{}
	case polling.OpClose:
		p.Status = polling.StatusClosed
	default:
		return polling.InvalidInput("unknown poll operation %q", op)
	}
	return nil
}

// DeletePoll removes a poll.
func (s *Storage) DeletePoll(_ context.Context, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("delete poll"); err != nil {
		return err
	}
	if _, ok := s.polls[pollID]; !ok {
		return polling.ErrPollNotFound
	}
	delete(s.polls, pollID)
	return nil
}

// VotePoll increments optionID and records username as a voter when the
// poll accepts votes at now and username has not voted yet.
func (s *Storage) VotePoll(_ context.Context, pollID, optionID int64, username string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("vote poll"); err != nil {
		return err
	}
	p, ok := s.polls[pollID]
	if !ok || !p.AcceptsVotes(now) || p.HasVoter(username) {
		return polling.ErrAlreadyVoted
	}
	for i := range p.Options {
		if p.Options[i].OptionID == optionID {
			p.Options[i].Votes++
			p.UsersVoted = append(p.UsersVoted, username)
			return nil
		}
	}
	return fmt.Errorf("%w: option %d not found", polling.ErrAlreadyVoted, optionID)
}

// ExpirePolls moves Active polls whose expiration date is at or before now
// to Expired.
func (s *Storage) ExpirePolls(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("expire polls"); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range s.polls {
		if p.Status == polling.StatusActive && p.ExpirationDate != nil && !p.ExpirationDate.After(now) {
			p.Status = polling.StatusExpired
			n++
		}
	}
	return n, nil
}
