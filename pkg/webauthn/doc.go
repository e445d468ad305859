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

// Package webauthn runs passwordless registration and login ceremonies for
// the polling service on top of go-webauthn/webauthn.
//
// A registration ceremony is started for a new user name and kept in a
// RegistrationStore under a random nonce that the client echoes back when
// finishing. A login ceremony is kept in an AuthenticationStore under the
// user id, so a user has at most one login in flight. Both stores drop
// ceremonies older than Config.ChallengeTTL.
//
// # Usage
//
//	svc, err := webauthn.NewService(webauthn.ServiceParams{
//	    Config: &webauthn.Config{
//	        RPID:      "localhost",
//	        RPOrigins: []string{"http://localhost:3000"},
//	    },
//	    Users:  storage,
//	    Tokens: session.NewIssuer(session.Config{Secret: secret}),
//	})
//	stop := svc.StartCleanup(ctx)
//	defer stop()
//
// Successful logins yield an HS256 session token minted by the TokenIssuer.
// The http subpackage exposes the four ceremony steps as JSON endpoints.
package webauthn
