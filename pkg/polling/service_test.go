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

package polling_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

func newService(t *testing.T, f *fixture) *polling.Service {
	t.Helper()
	svc, err := polling.NewService(polling.ServiceParams{
		Users:       f.store,
		Polls:       f.store,
		Coordinator: f.coord,
		Now:         clock,
	})
	require.NoError(t, err)
	return svc
}

func validInput() polling.PollInput {
	return polling.PollInput{
		Title:       "  Best editor  ",
		Description: "pick one",
		Creator:     "alice",
		Options:     []polling.OptionInput{{Text: "vim"}, {Text: " emacs "}},
	}
}

func TestNewService_RequiresRepositories(t *testing.T) {
	_, err := polling.NewService(polling.ServiceParams{})
	assert.Error(t, err)
}

func TestCreatePoll(t *testing.T) {
	f := newFixture(t, "alice")
	svc := newService(t, f)
	ctx := context.Background()

	input := validInput()
	p, err := svc.CreatePoll(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.PollID)
	assert.Equal(t, "Best editor", p.Title)
	assert.Equal(t, "emacs", p.Options[1].Text)
	assert.Equal(t, " emacs ", input.Options[1].Text, "caller input must not be modified")
	assert.Equal(t, polling.StatusActive, p.Status)
	assert.Equal(t, testNow, p.CreatedAt)

	alice, err := f.store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{p.PollID}, alice.OwnedPolls)

	list, err := svc.ListPolls(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreatePoll_Validation(t *testing.T) {
	f := newFixture(t, "alice")
	svc := newService(t, f)
	ctx := context.Background()

	past := testNow.Add(-time.Second)
	tests := []struct {
		name   string
		mutate func(*polling.PollInput)
		want   error
	}{
		{"empty title", func(in *polling.PollInput) { in.Title = "  " }, polling.ErrInvalidInput},
		{"long title", func(in *polling.PollInput) { in.Title = strings.Repeat("x", polling.MaxTitleLength+1) }, polling.ErrInvalidInput},
		{"no creator", func(in *polling.PollInput) { in.Creator = "" }, polling.ErrInvalidInput},
		{"no options", func(in *polling.PollInput) { in.Options = nil }, polling.ErrInvalidInput},
		{"blank option", func(in *polling.PollInput) { in.Options[0].Text = " " }, polling.ErrInvalidInput},
		{"expired", func(in *polling.PollInput) { in.ExpirationDate = &past }, polling.ErrInvalidInput},
		{"unknown creator", func(in *polling.PollInput) { in.Creator = "mallory" }, polling.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.CreatePoll(ctx, input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := svc.ListPolls(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestResetPoll(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	svc := newService(t, f)
	ctx := context.Background()

	p, err := svc.CreatePoll(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.CastVote(ctx, polling.VoteRequest{PollID: p.PollID, OptionID: 1, Username: "bob"}))

	assert.ErrorIs(t, svc.ResetPoll(ctx, "id-bob", p.PollID), polling.ErrForbidden)
	assert.ErrorIs(t, svc.ResetPoll(ctx, "", p.PollID), polling.ErrForbidden)
	require.NoError(t, svc.ResetPoll(ctx, "id-alice", p.PollID))

	got, err := svc.Results(ctx, p.PollID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalVotes())
	assert.Empty(t, got.UsersVoted)

	bob, _ := f.store.GetUser(ctx, "bob")
	assert.Empty(t, bob.PollsVoted)

	// bob may vote again
	require.NoError(t, svc.CastVote(ctx, polling.VoteRequest{PollID: p.PollID, OptionID: 2, Username: "bob"}))
	f.assertConsistent(t, p.PollID)
}

func TestClosePoll(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	svc := newService(t, f)
	ctx := context.Background()

	p, err := svc.CreatePoll(ctx, validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ClosePoll(ctx, "id-bob", p.PollID), polling.ErrForbidden)
	require.NoError(t, svc.ClosePoll(ctx, "id-alice", p.PollID))
	require.NoError(t, svc.ClosePoll(ctx, "id-alice", p.PollID))

	got, _ := svc.GetPoll(ctx, p.PollID)
	assert.Equal(t, polling.StatusClosed, got.Status)

	err = svc.CastVote(ctx, polling.VoteRequest{PollID: p.PollID, OptionID: 1, Username: "bob"})
	assert.ErrorIs(t, err, polling.ErrAlreadyVoted)
	assert.ErrorIs(t, svc.ClosePoll(ctx, "id-alice", 404), polling.ErrPollNotFound)
}

func TestDeletePoll(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	svc := newService(t, f)
	ctx := context.Background()

	p, err := svc.CreatePoll(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.CastVote(ctx, polling.VoteRequest{PollID: p.PollID, OptionID: 1, Username: "bob"}))

	assert.ErrorIs(t, svc.DeletePoll(ctx, "id-bob", p.PollID), polling.ErrForbidden)
	require.NoError(t, svc.DeletePoll(ctx, "id-alice", p.PollID))
	assert.ErrorIs(t, svc.DeletePoll(ctx, "id-alice", p.PollID), polling.ErrPollNotFound)

	alice, _ := f.store.GetUser(ctx, "alice")
	bob, _ := f.store.GetUser(ctx, "bob")
	assert.Empty(t, alice.OwnedPolls)
	assert.Empty(t, bob.PollsVoted)
}

func TestOwnerOp_DeletedCreator(t *testing.T) {
	f := newFixture(t, "alice")
	svc := newService(t, f)
	ctx := context.Background()

	p, err := svc.CreatePoll(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteUser(ctx, "id-alice"))

	assert.ErrorIs(t, svc.ClosePoll(ctx, "id-alice", p.PollID), polling.ErrForbidden)
}

func TestExpirePolls(t *testing.T) {
	f := newFixture(t, "alice")
	now := testNow
	svc, err := polling.NewService(polling.ServiceParams{
		Users: f.store,
		Polls: f.store,
		Now:   func() time.Time { return now },
	})
	require.NoError(t, err)
	ctx := context.Background()

	in := validInput()
	expires := testNow.Add(time.Minute)
	in.ExpirationDate = &expires
	p, err := svc.CreatePoll(ctx, in)
	require.NoError(t, err)

	n, err := svc.ExpirePolls(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = testNow.Add(2 * time.Minute)
	n, err = svc.ExpirePolls(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := svc.GetPoll(ctx, p.PollID)
	assert.Equal(t, polling.StatusExpired, got.Status)
}

func TestStartExpirySweeper(t *testing.T) {
	f := newFixture(t, "alice")
	svc := newService(t, f)
	ctx := context.Background()

	expires := testNow.Add(-time.Minute)
	_, err := f.store.CreatePoll(ctx, polling.PollInput{
		Title: "stale", Creator: "alice", ExpirationDate: &expires,
		Options: []polling.OptionInput{{Text: "a"}},
	})
	require.NoError(t, err)

	cancel := svc.StartExpirySweeper(ctx, 10*time.Millisecond)
	defer cancel()

	assert.Eventually(t, func() bool {
		p, err := svc.GetPoll(ctx, 1)
		return err == nil && p.Status == polling.StatusExpired
	}, time.Second, 10*time.Millisecond)
}

type failingExpiry struct {
	polling.PollRepository
	calls atomic.Int32
}

func (f *failingExpiry) ExpirePolls(context.Context, time.Time) (int, error) {
	f.calls.Add(1)
	return 0, errors.New("connection refused")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartExpirySweeper_ThrottlesFailureLogs(t *testing.T) {
	f := newFixture(t, "alice")
	polls := &failingExpiry{PollRepository: f.store}
	out := &lockedBuffer{}
	svc, err := polling.NewService(polling.ServiceParams{
		Users:  f.store,
		Polls:  polls,
		Logger: logger.NewSlogAdapter(&logger.SlogConfig{Level: logger.LevelInfo, Output: out}),
		Now:    clock,
	})
	require.NoError(t, err)

	cancel := svc.StartExpirySweeper(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return polls.calls.Load() >= 5
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.Equal(t, 1, strings.Count(out.String(), "poll expiry sweep failed"))
}

func TestResetPoll_VoteBetweenResetAndHistoryClear(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	svc := newService(t, f)
	p := f.poll(t, "vim", "emacs")
	ctx := context.Background()
	req := polling.VoteRequest{PollID: p.PollID, OptionID: 1, Username: "bob"}

	// bob votes after the poll was reset but before histories are cleared.
	require.NoError(t, f.store.UpdatePoll(ctx, p.PollID, polling.OpReset))
	require.NoError(t, svc.CastVote(ctx, req))
	require.NoError(t, f.store.ClearVotes(ctx, p.PollID))

	bob, err := f.store.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob.PollsVoted)

	assert.ErrorIs(t, svc.CastVote(ctx, req), polling.ErrAlreadyVoted)
	got, err := svc.Results(ctx, p.PollID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalVotes())
	assert.Equal(t, []string{"bob"}, got.UsersVoted)

	bob, err = f.store.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob.PollsVoted, "failed vote must be compensated")
}

func TestCastVoteAs(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	svc := newService(t, f)
	p := f.poll(t, "vim", "emacs")
	ctx := context.Background()
	req := polling.VoteRequest{PollID: p.PollID, OptionID: 2, Username: "bob"}

	assert.ErrorIs(t, svc.CastVoteAs(ctx, "id-alice", req), polling.ErrUnauthorized)
	assert.ErrorIs(t, svc.CastVoteAs(ctx, "", req), polling.ErrUnauthorized)
	assert.ErrorIs(t, svc.CastVoteAs(ctx, "id-bob", polling.VoteRequest{PollID: p.PollID, OptionID: 1, Username: "carol"}), polling.ErrUnauthorized)
	assert.ErrorIs(t, svc.CastVoteAs(ctx, "id-bob", polling.VoteRequest{PollID: p.PollID, OptionID: 1}), polling.ErrInvalidInput)

	require.NoError(t, svc.CastVoteAs(ctx, "id-bob", req))
	assert.ErrorIs(t, svc.CastVoteAs(ctx, "id-bob", req), polling.ErrAlreadyVoted)

	got, err := svc.Results(ctx, p.PollID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.Options[1].Votes)
}
