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

// Package session issues and verifies the HS256 bearer tokens handed out
// after a successful passkey login.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultLifetime is how long a token stays valid.
	DefaultLifetime = 24 * time.Hour

	// DefaultSecret is the signing secret used when none is configured.
	// It is only suitable for local development.
	DefaultSecret = "notsosecuresecret"
)

var (
	// ErrToken is returned when a token cannot be signed or fails verification.
	ErrToken = errors.New("token error")

	// ErrMissingSubject is returned when asked to sign a token without a user id.
	ErrMissingSubject = errors.New("token subject is required")
)

// Claims is the token payload: issued-at, expiry and the user's UUID.
type Claims struct {
	UUID string `json:"uuid"`
	jwt.RegisteredClaims
}

// Config configures an Issuer.
type Config struct {
	// Secret is the HMAC key. Empty means DefaultSecret.
	Secret string

	// Lifetime defaults to DefaultLifetime.
	Lifetime time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Issuer signs and verifies session tokens. It is immutable after
// construction and safe for concurrent use.
type Issuer struct {
	secret        []byte
	lifetime      time.Duration
	now           func() time.Time
	defaultSecret bool
}

// NewIssuer creates a token issuer.
func NewIssuer(cfg Config) *Issuer {
	secret := cfg.Secret
	usingDefault := secret == ""
	if usingDefault {
		secret = DefaultSecret
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret:        []byte(secret),
		lifetime:      lifetime,
		now:           now,
		defaultSecret: usingDefault,
	}
}

// UsingDefaultSecret reports whether the issuer fell back to DefaultSecret.
func (i *Issuer) UsingDefaultSecret() bool {
	return i.defaultSecret
}

// Lifetime returns how long issued tokens stay valid.
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

// Encode signs a token for userID.
func (i *Issuer) Encode(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: %w", ErrToken, ErrMissingSubject)
	}
	now := i.now().Truncate(time.Second)
	claims := Claims{
		UUID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToken, err)
	}
	return signed, nil
}

// Decode verifies the signature, algorithm and expiry of token and returns
// its claims.
func (i *Issuer) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrToken, err)
	}
	if !parsed.Valid || claims.UUID == "" {
		return nil, fmt.Errorf("%w: invalid claims", ErrToken)
	}
	return claims, nil
}
