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

// Package rest assembles the HTTP server: a chi router carrying the
// ceremony routes, the bearer-protected poll routes, health checks and
// the Prometheus handler behind a shared middleware chain.
//
// Middleware, outermost first:
//
//	Recovery -> Correlation -> Logging -> metrics -> CORS
//
// Routes:
//
//	GET  /                                 "Welcome"
//	GET  /api                              "API is running."
//	POST /api/auth/start_reg/{username}
//	POST /api/auth/finish_reg              (X-Session-Id)
//	POST /api/auth/start_auth/{username}
//	POST /api/auth/finish_auth/{username}
//	*    /api/polls...                     (Authorization: Bearer)
//	GET  /health, /health/live, /health/ready
//	GET  /metrics
//
// Example:
//
//	srv, err := rest.NewServer(&rest.Config{
//	    Addr:          ":3000",
//	    WebAuthn:      ceremonies,
//	    Polls:         polls,
//	    Authenticator: bearer,
//	    Health:        checker,
//	    MetricsPath:   "/metrics",
//	})
//	go srv.Start()
//	defer srv.Stop(ctx)
package rest
