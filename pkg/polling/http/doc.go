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

// Package http exposes poll creation, voting and results over HTTP.
//
// # Endpoints
//
//	POST   /polls                       - Create a poll
//	GET    /polls/{poll_id}             - Fetch a poll, or all polls for id 0
//	POST   /polls/vote                  - Cast a vote
//	POST   /polls/{poll_id}/reset       - Reset tallies (creator only)
//	POST   /polls/{poll_id}/close       - Close the poll (creator only)
//	GET    /polls/{poll_id}/results     - Current results, ?live=true for SSE
//	DELETE /polls/{poll_id}             - Delete the poll (creator only)
//
// Reset, close and delete answer with a plain-text message.
//
// Live results are sent as "data: <poll json>" events every live interval.
// When the poll is deleted a final "data: Poll not found" event ends the
// stream.
package http
