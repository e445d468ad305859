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

package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

func byName(username string) bson.D {
	return bson.D{{Key: "user_name", Value: username}}
}

// CreateUser inserts user. Returns polling.ErrUserAlreadyExists when the
// name or id is taken.
func (s *Storage) CreateUser(ctx context.Context, user *polling.User) (*polling.User, error) {
	if user == nil || user.UserName == "" {
		return nil, polling.InvalidInput("user name is required")
	}
	doc := user.Clone()
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, polling.ErrUserAlreadyExists
		}
		return nil, polling.NewStoreError("create user", err)
	}
	return doc.Clone(), nil
}

// GetUser retrieves the user named username.
func (s *Storage) GetUser(ctx context.Context, username string) (*polling.User, error) {
	return s.findUser(ctx, "get user", byName(username))
}

// GetUserByID retrieves the user with the given id.
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*polling.User, error) {
	return s.findUser(ctx, "get user by id", bson.D{{Key: "user_id", Value: userID}})
}

func (s *Storage) findUser(ctx context.Context, op string, filter bson.D) (*polling.User, error) {
	var u polling.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if isNotFound(err) {
			return nil, polling.ErrUserNotFound
		}
		return nil, polling.NewStoreError(op, err)
	}
	return u.Clone(), nil
}

// UpdateCredentials replaces the passkeys of a user.
func (s *Storage) UpdateCredentials(ctx context.Context, username string, keys []polling.Passkey) error {
	if keys == nil {
		keys = []polling.Passkey{}
	}
	res, err := s.users.UpdateOne(ctx, byName(username),
		bson.D{{Key: "$set", Value: bson.D{{Key: "keys", Value: keys}}}})
	if err != nil {
		return polling.NewStoreError("update credentials", err)
	}
	if res.MatchedCount == 0 {
		return polling.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user with the given id.
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return polling.NewStoreError("delete user", err)
	}
	if res.DeletedCount == 0 {
		return polling.ErrUserNotFound
	}
	return nil
}

// AddVote pushes vote onto the user's history. The filter only matches
// while the history holds no entry for the same poll.
func (s *Storage) AddVote(ctx context.Context, username string, vote polling.Vote) error {
	filter := bson.D{
		{Key: "user_name", Value: username},
		{Key: "polls_voted.poll_id", Value: bson.D{{Key: "$ne", Value: vote.PollID}}},
	}
	res, err := s.users.UpdateOne(ctx, filter,
		bson.D{{Key: "$push", Value: bson.D{{Key: "polls_voted", Value: vote}}}})
	if err != nil {
		return polling.NewStoreError("add vote", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.users.CountDocuments(ctx, byName(username), options.Count().SetLimit(1))
	if err != nil {
		return polling.NewStoreError("add vote", err)
	}
	if n == 0 {
		return polling.ErrUserNotFound
	}
	return polling.ErrAlreadyVoted
}

// RemoveVote pulls the history entry for pollID. Unknown users are ignored.
func (s *Storage) RemoveVote(ctx context.Context, username string, pollID int64) error {
	_, err := s.users.UpdateOne(ctx, byName(username), pullVote(pollID))
	if err != nil {
		return polling.NewStoreError("remove vote", err)
	}
	return nil
}

// HasVoted reports whether the user's history holds an entry for pollID.
func (s *Storage) HasVoted(ctx context.Context, username string, pollID int64) (bool, error) {
	n, err := s.users.CountDocuments(ctx, bson.D{
		{Key: "user_name", Value: username},
		{Key: "polls_voted.poll_id", Value: pollID},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, polling.NewStoreError("has voted", err)
	}
	return n > 0, nil
}

// AddOwnedPoll records pollID as created by the user.
func (s *Storage) AddOwnedPoll(ctx context.Context, username string, pollID int64) error {
	res, err := s.users.UpdateOne(ctx, byName(username),
		bson.D{{Key: "$addToSet", Value: bson.D{{Key: "owned_polls", Value: pollID}}}})
	if err != nil {
		return polling.NewStoreError("add owned poll", err)
	}
	if res.MatchedCount == 0 {
		return polling.ErrUserNotFound
	}
	return nil
}

// ClearVotes removes pollID from every user's vote history.
func (s *Storage) ClearVotes(ctx context.Context, pollID int64) error {
	_, err := s.users.UpdateMany(ctx,
		bson.D{{Key: "polls_voted.poll_id", Value: pollID}},
		pullVote(pollID))
	if err != nil {
		return polling.NewStoreError("clear votes", err)
	}
	return nil
}

// RemovePoll removes pollID from every user's owned polls and history.
func (s *Storage) RemovePoll(ctx context.Context, pollID int64) error {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "owned_polls", Value: pollID}},
		bson.D{{Key: "polls_voted.poll_id", Value: pollID}},
	}}}
	update := bson.D{{Key: "$pull", Value: bson.D{
		{Key: "owned_polls", Value: pollID},
		{Key: "polls_voted", Value: bson.D{{Key: "poll_id", Value: pollID}}},
	}}}
	if _, err := s.users.UpdateMany(ctx, filter, update); err != nil {
		return polling.NewStoreError("remove poll", err)
	}
	return nil
}

func pullVote(pollID int64) bson.D {
	return bson.D{{Key: "$pull", Value: bson.D{
		{Key: "polls_voted", Value: bson.D{{Key: "poll_id", Value: pollID}}},
	}}}
}
