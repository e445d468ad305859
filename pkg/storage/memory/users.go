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
	"slices"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

// CreateUser stores a copy of user.
// Returns polling.ErrUserAlreadyExists if the name or id is taken.
func (s *Storage) CreateUser(_ context.Context, user *polling.User) (*polling.User, error) {
	if user == nil || user.UserName == "" {
		return nil, polling.InvalidInput("user name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("create user"); err != nil {
		return nil, err
	}
	if _, exists := s.users[user.UserName]; exists {
		return nil, polling.ErrUserAlreadyExists
	}
	for _, u := range s.users {
		if u.UserID == user.UserID {
			return nil, polling.ErrUserAlreadyExists
		}
	}

	stored := user.Clone()
	s.users[stored.UserName] = stored
	return stored.Clone(), nil
}

// GetUser retrieves a copy of the user named username.
func (s *Storage) GetUser(_ context.Context, username string) (*polling.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get user"); err != nil {
		return nil, err
	}
	u, ok := s.users[username]
	if !ok {
		return nil, polling.ErrUserNotFound
	}
	return u.Clone(), nil
}

// GetUserByID retrieves a copy of the user with the given id.
func (s *Storage) GetUserByID(_ context.Context, userID string) (*polling.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get user by id"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.UserID == userID {
			return u.Clone(), nil
		}
	}
	return nil, polling.ErrUserNotFound
}

// UpdateCredentials replaces the passkeys of a user.
func (s *Storage) UpdateCredentials(_ context.Context, username string, keys []polling.Passkey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("update credentials"); err != nil {
		return err
	}
	u, ok := s.users[username]
	if !ok {
		return polling.ErrUserNotFound
	}
	u.Keys = make([]polling.Passkey, len(keys))
	for i, k := range keys {
		u.Keys[i] = k.Clone()
	}
	return nil
}

// DeleteUser removes the user with the given id.
func (s *Storage) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("delete user"); err != nil {
		return err
	}
	for name, u := range s.users {
		if u.UserID == userID {
			delete(s.users, name)
			return nil
		}
	}
	return polling.ErrUserNotFound
}

// AddVote appends vote to the user's history unless it already holds an
// entry for the same poll.
func (s *Storage) AddVote(_ context.Context, username string, vote polling.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("add vote"); err != nil {
		return err
	}
	u, ok := s.users[username]
	if !ok {
		return polling.ErrUserNotFound
	}
	if u.HasVotedOn(vote.PollID) {
		return polling.ErrAlreadyVoted
	}
	u.PollsVoted = append(u.PollsVoted, vote)
	return nil
}

// RemoveVote drops the history entry for pollID.
func (s *Storage) RemoveVote(_ context.Context, username string, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("remove vote"); err != nil {
		return err
	}
	if u, ok := s.users[username]; ok {
		u.PollsVoted = dropVotes(u.PollsVoted, pollID)
	}
	return nil
}

// HasVoted reports whether the user's history holds an entry for pollID.
// An unknown user has not voted.
func (s *Storage) HasVoted(_ context.Context, username string, pollID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("has voted"); err != nil {
		return false, err
	}
	u, ok := s.users[username]
	if !ok {
		return false, nil
	}
	return u.HasVotedOn(pollID), nil
}

// AddOwnedPoll records pollID as created by the user.
func (s *Storage) AddOwnedPoll(_ context.Context, username string, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("add owned poll"); err != nil {
		return err
	}
	u, ok := s.users[username]
	if !ok {
		return polling.ErrUserNotFound
	}
	if !slices.Contains(u.OwnedPolls, pollID) {
		u.OwnedPolls = append(u.OwnedPolls, pollID)
	}
	return nil
}

// ClearVotes removes pollID from every user's vote history.
func (s *Storage) ClearVotes(_ context.Context, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("clear votes"); err != nil {
		return err
	}
	for _, u := range s.users {
		u.PollsVoted = dropVotes(u.PollsVoted, pollID)
	}
	return nil
}

// RemovePoll removes pollID from every user's owned polls and vote history.
func (s *Storage) RemovePoll(_ context.Context, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("remove poll"); err != nil {
		return err
	}
	for _, u := range s.users {
		u.PollsVoted = dropVotes(u.PollsVoted, pollID)
		u.OwnedPolls = slices.DeleteFunc(u.OwnedPolls, func(id int64) bool { return id == pollID })
	}
	return nil
}

func dropVotes(votes []polling.Vote, pollID int64) []polling.Vote {
	return slices.DeleteFunc(votes, func(v polling.Vote) bool { return v.PollID == pollID })
}
