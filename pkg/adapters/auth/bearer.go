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

package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jeremyhahn/go-passpoll/pkg/session"
)

// TokenDecoder verifies a session token and returns its claims.
type TokenDecoder interface {
	Decode(token string) (*session.Claims, error)
}

// BearerAuthenticator authenticates requests carrying
// "Authorization: Bearer <token>" with a session token.
type BearerAuthenticator struct {
	decoder    TokenDecoder
	headerName string
}

// NewBearerAuthenticator creates a bearer authenticator backed by decoder.
func NewBearerAuthenticator(decoder TokenDecoder) (*BearerAuthenticator, error) {
	if decoder == nil {
		return nil, fmt.Errorf("token decoder is required")
	}
	return &BearerAuthenticator{
		decoder:    decoder,
		headerName: "Authorization",
	}, nil
}

// Name returns the authenticator name.
func (a *BearerAuthenticator) Name() string {
	return "bearer"
}

// AuthenticateHTTP authenticates an HTTP request using its bearer token.
func (a *BearerAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get(a.headerName)
	if authHeader == "" {
		return nil, fmt.Errorf("%w: no authorization header", ErrUnauthorized)
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, fmt.Errorf("%w: expected bearer scheme", ErrUnauthorized)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: no token provided", ErrUnauthorized)
	}

	claims, err := a.decoder.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	identity := &Identity{
		Subject: claims.UUID,
		Claims: map[string]any{
			"uuid": claims.UUID,
		},
		Attributes: map[string]string{
			"auth_method": "bearer",
			"remote_addr": r.RemoteAddr,
		},
	}
	if claims.IssuedAt != nil {
		identity.Claims["iat"] = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		identity.Claims["exp"] = claims.ExpiresAt.Unix()
	}
	return identity, nil
}
