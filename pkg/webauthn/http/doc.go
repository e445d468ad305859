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

// Package http exposes the passkey ceremonies as JSON endpoints.
//
// # Endpoints
//
//	POST /start_reg/{username}   - Start registration, nonce in X-Session-Id
//	POST /finish_reg             - Finish registration (X-Session-Id required)
//	POST /start_auth/{username}  - Start login
//	POST /finish_auth/{username} - Finish login, returns {"token": "..."}
//
// Routes can be mounted on chi with MountChi or on a ServeMux with
// MountStdlib. Error responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
package http
