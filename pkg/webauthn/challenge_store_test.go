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

package webauthn

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestChallengeStore_InsertGetTake(t *testing.T) {
	store := NewChallengeStore[AuthenticationCeremony](time.Minute)

	_, ok := store.Get("missing")
	assert.False(t, ok)

	store.Insert("u1", AuthenticationCeremony{UserID: "u1"})
	got, ok := store.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	// Get leaves the entry in place.
	_, ok = store.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, 1, store.Count())

	got, ok = store.Take("u1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	_, ok = store.Take("u1")
	assert.False(t, ok)
	assert.Zero(t, store.Count())
}

func TestChallengeStore_InsertReplaces(t *testing.T) {
	store := NewChallengeStore[RegistrationCeremony](time.Minute)

	store.Insert("n", RegistrationCeremony{Username: "alice"})
	store.Insert("n", RegistrationCeremony{Username: "bob"})

	got, ok := store.Get("n")
	require.True(t, ok)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, 1, store.Count())
}

func TestChallengeStore_TTLBoundary(t *testing.T) {
	clock := newFakeClock()
	store := NewChallengeStore[AuthenticationCeremony](5*time.Minute, WithStoreClock(clock.Now))
	store.Insert("u1", AuthenticationCeremony{UserID: "u1"})

	clock.Advance(300 * time.Second)
	_, ok := store.Get("u1")
	assert.True(t, ok, "entry must still be valid at exactly the ttl")

	clock.Advance(time.Second)
	_, ok = store.Get("u1")
	assert.False(t, ok, "entry must be expired one second past the ttl")

	// Still physically present until swept.
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, 1, store.CleanupExpired())
	assert.Zero(t, store.Count())
}

func TestChallengeStore_TakeExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewChallengeStore[RegistrationCeremony](time.Minute, WithStoreClock(clock.Now))
	store.Insert("n", RegistrationCeremony{Username: "alice"})

	clock.Advance(2 * time.Minute)
	_, ok := store.Take("n")
	assert.False(t, ok)
	assert.Zero(t, store.Count())
}

func TestChallengeStore_CleanupKeepsLiveEntries(t *testing.T) {
	clock := newFakeClock()
	store := NewChallengeStore[AuthenticationCeremony](time.Minute, WithStoreClock(clock.Now))

	store.Insert("old", AuthenticationCeremony{UserID: "old"})
	clock.Advance(45 * time.Second)
	store.Insert("new", AuthenticationCeremony{UserID: "new"})
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, store.CleanupExpired())
	_, ok := store.Get("new")
	assert.True(t, ok)
	_, ok = store.Get("old")
	assert.False(t, ok)
}

func TestChallengeStore_RemoveAndClear(t *testing.T) {
	store := NewChallengeStore[AuthenticationCeremony](0)
	assert.Equal(t, DefaultChallengeTTL, store.TTL())

	store.Remove("absent")
	store.Insert("a", AuthenticationCeremony{})
	store.Insert("b", AuthenticationCeremony{})
	store.Remove("a")
	assert.Equal(t, 1, store.Count())

	store.Clear()
	assert.Zero(t, store.Count())
}

func TestChallengeStore_Concurrent(t *testing.T) {
	store := NewChallengeStore[AuthenticationCeremony](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("user-%d", i)
			store.Insert(key, AuthenticationCeremony{UserID: key})
			_, _ = store.Get(key)
			if i%2 == 0 {
				store.Remove(key)
			}
			store.CleanupExpired()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, store.Count())
}

func TestChallengeStore_StartCleanupRoutine(t *testing.T) {
	clock := newFakeClock()
	store := NewChallengeStore[AuthenticationCeremony](time.Minute, WithStoreClock(clock.Now))
	store.Insert("u1", AuthenticationCeremony{})
	clock.Advance(2 * time.Minute)

	var mu sync.Mutex
	swept := 0
	stop := store.StartCleanupRoutine(context.Background(), 10*time.Millisecond, func(n int) {
		mu.Lock()
		swept += n
		mu.Unlock()
	})
	defer stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return swept == 1
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, store.Count())
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
