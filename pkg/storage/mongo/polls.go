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
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

func byPollID(pollID int64) bson.D {
	return bson.D{{Key: "poll_id", Value: pollID}}
}

// CreatePoll allocates the next poll id and inserts a new Active poll.
func (s *Storage) CreatePoll(ctx context.Context, input polling.PollInput) (*polling.Poll, error) {
	id, err := s.nextSequence(ctx, pollSequence)
	if err != nil {
		return nil, err
	}
	poll := polling.NewPoll(id, input, s.now())
	// Mongo stores milliseconds.
	poll.CreatedAt = poll.CreatedAt.Truncate(time.Millisecond)
	if poll.ExpirationDate != nil {
		t := poll.ExpirationDate.Truncate(time.Millisecond)
		poll.ExpirationDate = &t
	}
	if _, err := s.polls.InsertOne(ctx, poll); err != nil {
		return nil, polling.NewStoreError("create poll", err)
	}
	return poll.Clone(), nil
}

// FetchAll returns every poll ordered by id.
func (s *Storage) FetchAll(ctx context.Context) ([]*polling.Poll, error) {
	cur, err := s.polls.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "poll_id", Value: 1}}))
	if err != nil {
		return nil, polling.NewStoreError("fetch polls", err)
	}
	polls := []*polling.Poll{}
	if err := cur.All(ctx, &polls); err != nil {
		return nil, polling.NewStoreError("fetch polls", err)
	}
	for i, p := range polls {
		polls[i] = normalize(p)
	}
	return polls, nil
}

// GetPoll retrieves a poll.
func (s *Storage) GetPoll(ctx context.Context, pollID int64) (*polling.Poll, error) {
	var p polling.Poll
	if err := s.polls.FindOne(ctx, byPollID(pollID)).Decode(&p); err != nil {
		if isNotFound(err) {
			return nil, polling.ErrPollNotFound
		}
		return nil, polling.NewStoreError("get poll", err)
	}
	return normalize(&p), nil
}

// UpdatePoll applies op to a poll.
func (s *Storage) UpdatePoll(ctx context.Context, pollID int64, op polling.PollOp) error {
	var update bson.D
	switch op {
	case polling.OpReset:
		update = bson.D{{Key: "$set", Value: bson.D{
			{Key: "options.$[].votes", Value: int32(0)},
			{Key: "users_voted", Value: []string{}},
		}}}
	case polling.OpClose:
		update = bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: polling.StatusClosed},
		}}}
	default:
		return polling.InvalidInput("unknown poll operation %q", op)
	}

	res, err := s.polls.UpdateOne(ctx, byPollID(pollID), update)
	if err != nil {
		return polling.NewStoreError("update poll", err)
	}
	if res.MatchedCount == 0 {
		return polling.ErrPollNotFound
	}
	return nil
}

// DeletePoll removes a poll.
func (s *Storage) DeletePoll(ctx context.Context, pollID int64) error {
	res, err := s.polls.DeleteOne(ctx, byPollID(pollID))
	if err != nil {
		return polling.NewStoreError("delete poll", err)
	}
	if res.DeletedCount == 0 {
		return polling.ErrPollNotFound
	}
	return nil
}

// VotePoll increments optionID and records username as a voter in one
// conditional update. The filter only matches an Active, unexpired poll
// that has the option and no vote from username.
func (s *Storage) VotePoll(ctx context.Context, pollID, optionID int64, username string, now time.Time) error {
	filter := bson.D{
		{Key: "poll_id", Value: pollID},
		{Key: "status", Value: polling.StatusActive},
		{Key: "users_voted", Value: bson.D{{Key: "$ne", Value: username}}},
		{Key: "options.option_id", Value: optionID},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "expiration_date", Value: nil}},
			bson.D{{Key: "expiration_date", Value: bson.D{{Key: "$gt", Value: now}}}},
		}},
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "options.$[opt].votes", Value: int32(1)}}},
		{Key: "$push", Value: bson.D{{Key: "users_voted", Value: username}}},
	}
	// Positional $ is ambiguous next to the negated users_voted condition.
	opts := options.UpdateOne().SetArrayFilters([]any{
		bson.D{{Key: "opt.option_id", Value: optionID}},
	})

	res, err := s.polls.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return polling.NewStoreError("vote poll", err)
	}
	if res.MatchedCount == 0 {
		return polling.ErrAlreadyVoted
	}
	return nil
}

// ExpirePolls moves Active polls whose expiration date is at or before now
// to Expired.
func (s *Storage) ExpirePolls(ctx context.Context, now time.Time) (int, error) {
	res, err := s.polls.UpdateMany(ctx,
		bson.D{
			{Key: "status", Value: polling.StatusActive},
			{Key: "expiration_date", Value: bson.D{{Key: "$lte", Value: now}}},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: polling.StatusExpired}}}})
	if err != nil {
		return 0, polling.NewStoreError("expire polls", err)
	}
	return int(res.ModifiedCount), nil
}

// normalize replaces nil slices left by documents with missing arrays and
// converts decoded times to UTC.
func normalize(p *polling.Poll) *polling.Poll {
	c := p.Clone()
	if c.Options == nil {
		c.Options = []polling.PollOption{}
	}
	c.CreatedAt = c.CreatedAt.UTC()
	if c.ExpirationDate != nil {
		t := c.ExpirationDate.UTC()
		c.ExpirationDate = &t
	}
	return c
}
