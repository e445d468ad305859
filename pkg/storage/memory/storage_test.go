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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Storage {
	t.Helper()
	return New(WithClock(func() time.Time { return fixedNow }))
}

func seedUser(t *testing.T, s *Storage, name, id string) *polling.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &polling.User{
		UserID:   id,
		UserName: name,
		Keys:     []polling.Passkey{{CredentialID: []byte("cred-" + name), PublicKey: []byte{1, 2, 3}}},
	})
	require.NoError(t, err)
	return u
}

func seedPoll(t *testing.T, s *Storage, creator string, options ...string) *polling.Poll {
	t.Helper()
	input := polling.PollInput{Title: "Lunch?", Creator: creator}
	for _, o := range options {
		input.Options = append(input.Options, polling.OptionInput{Text: o})
	}
	p, err := s.CreatePoll(context.Background(), input)
	require.NoError(t, err)
	return p
}

func TestCreateUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice", "id-alice")
	assert.Equal(t, "alice", u.UserName)
	assert.NotNil(t, u.OwnedPolls)
	assert.NotNil(t, u.PollsVoted)

	_, err := s.CreateUser(ctx, &polling.User{UserID: "other", UserName: "alice"})
	assert.ErrorIs(t, err, polling.ErrUserAlreadyExists)

	_, err = s.CreateUser(ctx, &polling.User{UserID: "id-alice", UserName: "bob"})
	assert.ErrorIs(t, err, polling.ErrUserAlreadyExists)

	_, err = s.CreateUser(ctx, &polling.User{UserID: "x"})
	assert.ErrorIs(t, err, polling.ErrInvalidInput)
}

func TestGetUser_ReturnsCopies(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "alice", "id-alice")

	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	u.Keys[0].CredentialID[0] = 'X'
	u.PollsVoted = append(u.PollsVoted, polling.Vote{PollID: 9})

	again, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, byte('c'), again.Keys[0].CredentialID[0])
	assert.Empty(t, again.PollsVoted)

	byID, err := s.GetUserByID(ctx, "id-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.UserName)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, polling.ErrUserNotFound)
	_, err = s.GetUserByID(ctx, "nobody")
	assert.ErrorIs(t, err, polling.ErrUserNotFound)
}

func TestUpdateCredentialsAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "alice", "id-alice")

	keys := []polling.Passkey{{CredentialID: []byte("k1"), SignCount: 7}}
	require.NoError(t, s.UpdateCredentials(ctx, "alice", keys))

	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, u.Keys, 1)
	assert.Equal(t, uint32(7), u.Keys[0].SignCount)

	assert.ErrorIs(t, s.UpdateCredentials(ctx, "bob", keys), polling.ErrUserNotFound)

	require.NoError(t, s.DeleteUser(ctx, "id-alice"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "id-alice"), polling.ErrUserNotFound)
}

func TestVoteHistory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "alice", "id-alice")

	require.NoError(t, s.AddVote(ctx, "alice", polling.Vote{PollID: 1, OptionID: 2}))
	assert.ErrorIs(t, s.AddVote(ctx, "alice", polling.Vote{PollID: 1, OptionID: 1}), polling.ErrAlreadyVoted)
	assert.ErrorIs(t, s.AddVote(ctx, "bob", polling.Vote{PollID: 1}), polling.ErrUserNotFound)

	voted, err := s.HasVoted(ctx, "alice", 1)
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = s.HasVoted(ctx, "bob", 1)
	require.NoError(t, err)
	assert.False(t, voted)

	require.NoError(t, s.RemoveVote(ctx, "alice", 1))
	require.NoError(t, s.RemoveVote(ctx, "alice", 1))
	voted, err = s.HasVoted(ctx, "alice", 1)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestClearVotesAndRemovePoll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedUser(t, s, "alice", "id-alice")
	seedUser(t, s, "bob", "id-bob")

	require.NoError(t, s.AddOwnedPoll(ctx, "alice", 1))
	require.NoError(t, s.AddOwnedPoll(ctx, "alice", 1))
	require.NoError(t, s.AddVote(ctx, "alice", polling.Vote{PollID: 1, OptionID: 1}))
	require.NoError(t, s.AddVote(ctx, "bob", polling.Vote{PollID: 1, OptionID: 2}))
	require.NoError(t, s.AddVote(ctx, "bob", polling.Vote{PollID: 2, OptionID: 1}))

	require.NoError(t, s.ClearVotes(ctx, 1))
	alice, _ := s.GetUser(ctx, "alice")
	bob, _ := s.GetUser(ctx, "bob")
	assert.Empty(t, alice.PollsVoted)
	assert.Equal(t, []int64{1}, alice.OwnedPolls)
	assert.Equal(t, []polling.Vote{{PollID: 2, OptionID: 1}}, bob.PollsVoted)

	require.NoError(t, s.RemovePoll(ctx, 1))
	alice, _ = s.GetUser(ctx, "alice")
	assert.Empty(t, alice.OwnedPolls)

	assert.ErrorIs(t, s.AddOwnedPoll(ctx, "carol", 1), polling.ErrUserNotFound)
}

func TestCreatePoll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	p1 := seedPoll(t, s, "alice", "Pizza", "Sushi")
	p2 := seedPoll(t, s, "alice", "Yes")

	assert.Equal(t, int64(1), p1.PollID)
	assert.Equal(t, int64(2), p2.PollID)
	assert.Equal(t, polling.StatusActive, p1.Status)
	assert.Equal(t, fixedNow, p1.CreatedAt)
	assert.Equal(t, []string{}, p1.UsersVoted)
	require.Len(t, p1.Options, 2)
	assert.Equal(t, int64(1), p1.Options[0].OptionID)
	assert.Equal(t, int64(2), p1.Options[1].OptionID)

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].PollID)
	assert.Equal(t, int64(2), all[1].PollID)

	_, err = s.GetPoll(ctx, 99)
	assert.ErrorIs(t, err, polling.ErrPollNotFound)
}

func TestVotePoll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seedPoll(t, s, "alice", "A", "B")

	require.NoError(t, s.VotePoll(ctx, p.PollID, 2, "bob", fixedNow))
	assert.ErrorIs(t, s.VotePoll(ctx, p.PollID, 2, "bob", fixedNow), polling.ErrAlreadyVoted)
	assert.ErrorIs(t, s.VotePoll(ctx, p.PollID, 3, "carol", fixedNow), polling.ErrAlreadyVoted)
	assert.ErrorIs(t, s.VotePoll(ctx, 42, 1, "carol", fixedNow), polling.ErrAlreadyVoted)

	got, err := s.GetPoll(ctx, p.PollID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), got.Options[0].Votes)
	assert.Equal(t, int32(1), got.Options[1].Votes)
	assert.Equal(t, []string{"bob"}, got.UsersVoted)
	assert.Equal(t, len(got.UsersVoted), got.TotalVotes())
}

func TestUpdatePoll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seedPoll(t, s, "alice", "A", "B")
	require.NoError(t, s.VotePoll(ctx, p.PollID, 1, "bob", fixedNow))

	require.NoError(t, s.UpdatePoll(ctx, p.PollID, polling.OpReset))
	got, _ := s.GetPoll(ctx, p.PollID)
	assert.Zero(t, got.TotalVotes())
	assert.Empty(t, got.UsersVoted)

	// bob may vote again after a reset
	require.NoError(t, s.VotePoll(ctx, p.PollID, 2, "bob", fixedNow))

	require.NoError(t, s.UpdatePoll(ctx, p.PollID, polling.OpClose))
	require.NoError(t, s.UpdatePoll(ctx, p.PollID, polling.OpClose))
	got, _ = s.GetPoll(ctx, p.PollID)
	assert.Equal(t, polling.StatusClosed, got.Status)
	assert.ErrorIs(t, s.VotePoll(ctx, p.PollID, 1, "carol", fixedNow), polling.ErrAlreadyVoted)

	assert.ErrorIs(t, s.UpdatePoll(ctx, p.PollID, polling.PollOp("explode")), polling.ErrInvalidInput)
	assert.ErrorIs(t, s.UpdatePoll(ctx, 99, polling.OpClose), polling.ErrPollNotFound)
}

func TestDeletePoll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seedPoll(t, s, "alice", "A")

	require.NoError(t, s.DeletePoll(ctx, p.PollID))
	assert.ErrorIs(t, s.DeletePoll(ctx, p.PollID), polling.ErrPollNotFound)
}

func TestExpirePolls(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	past := fixedNow.Add(time.Hour)
	expiring, err := s.CreatePoll(ctx, polling.PollInput{
		Title: "soon", Creator: "alice", ExpirationDate: &past,
		Options: []polling.OptionInput{{Text: "A"}},
	})
	require.NoError(t, err)
	open := seedPoll(t, s, "alice", "A")

	later := fixedNow.Add(2 * time.Hour)
	assert.ErrorIs(t, s.VotePoll(ctx, expiring.PollID, 1, "bob", later), polling.ErrAlreadyVoted)

	n, err := s.ExpirePolls(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := s.GetPoll(ctx, expiring.PollID)
	assert.Equal(t, polling.StatusExpired, got.Status)
	got, _ = s.GetPoll(ctx, open.PollID)
	assert.Equal(t, polling.StatusActive, got.Status)

	n, err = s.ExpirePolls(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentVotes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seedPoll(t, s, "alice", "A", "B")

	const voters = 50
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(2)
		name := fmt.Sprintf("user-%d", i)
		for j := 0; j < 2; j++ {
			go func() {
				defer wg.Done()
				_ = s.VotePoll(ctx, p.PollID, 1, name, fixedNow)
			}()
		}
	}
	wg.Wait()

	got, err := s.GetPoll(ctx, p.PollID)
	require.NoError(t, err)
	assert.Equal(t, voters, got.TotalVotes())
	assert.Len(t, got.UsersVoted, voters)
}

func TestClose(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
	_, err := s.GetUser(ctx, "alice")
	assert.ErrorIs(t, err, polling.ErrDatabase)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.FetchAll(ctx)
	assert.ErrorIs(t, err, polling.ErrDatabase)
}
