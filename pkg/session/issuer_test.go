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

package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUUID = "6f1c1d3e-8a4b-4c55-9a3e-0d6a0f1b2c3d"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEncodeDecode(t *testing.T) {
	now := time.Now()
	issuer := NewIssuer(Config{Secret: "s3cret", Now: fixedClock(now)})

	token, err := issuer.Encode(testUUID)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := issuer.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, testUUID, claims.UUID)
	assert.Equal(t, int64(86400), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
}

func TestEncode_PayloadShape(t *testing.T) {
	issuer := NewIssuer(Config{Secret: "s3cret"})
	token, err := issuer.Encode(testUUID)
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	assert.Len(t, fields, 3)
	assert.Contains(t, fields, "iat")
	assert.Contains(t, fields, "exp")
	assert.Equal(t, testUUID, fields["uuid"])
}

func TestEncode_RequiresSubject(t *testing.T) {
	_, err := NewIssuer(Config{}).Encode("")
	assert.ErrorIs(t, err, ErrToken)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestDefaults(t *testing.T) {
	issuer := NewIssuer(Config{})
	assert.True(t, issuer.UsingDefaultSecret())
	assert.Equal(t, DefaultLifetime, issuer.Lifetime())

	configured := NewIssuer(Config{Secret: "x", Lifetime: time.Hour})
	assert.False(t, configured.UsingDefaultSecret())
	assert.Equal(t, time.Hour, configured.Lifetime())

	// default secret tokens verify against an explicitly configured default
	token, err := issuer.Encode(testUUID)
	require.NoError(t, err)
	_, err = NewIssuer(Config{Secret: DefaultSecret}).Decode(token)
	assert.NoError(t, err)
}

func TestDecode_Rejects(t *testing.T) {
	now := time.Now()
	issuer := NewIssuer(Config{Secret: "s3cret", Now: fixedClock(now)})
	good, err := issuer.Encode(testUUID)
	require.NoError(t, err)

	wrongKey, err := NewIssuer(Config{Secret: "other", Now: fixedClock(now)}).Encode(testUUID)
	require.NoError(t, err)

	expired, err := NewIssuer(Config{Secret: "s3cret", Now: fixedClock(now.Add(-25 * time.Hour))}).Encode(testUUID)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UUID: testUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UUID: testUUID}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":    "not.a.token",
		"empty":      "",
		"wrong key":  wrongKey,
		"expired":    expired,
		"wrong alg":  hs512,
		"no expiry":  noExp,
		"no subject": noSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Decode(token)
			assert.ErrorIs(t, err, ErrToken)
		})
	}

	_, err = issuer.Decode(good)
	assert.NoError(t, err)
}

func TestDecode_ExpiresAfterLifetime(t *testing.T) {
	now := time.Now()
	token, err := NewIssuer(Config{Secret: "k", Now: fixedClock(now)}).Encode(testUUID)
	require.NoError(t, err)

	later := NewIssuer(Config{Secret: "k", Now: fixedClock(now.Add(24*time.Hour + time.Second))})
	_, err = later.Decode(token)
	assert.ErrorIs(t, err, ErrToken)

	before := NewIssuer(Config{Secret: "k", Now: fixedClock(now.Add(23 * time.Hour))})
	_, err = before.Decode(token)
	assert.NoError(t, err)
}
