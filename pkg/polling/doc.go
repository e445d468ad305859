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

// Package polling contains the poll and user domain model, the repository
// interfaces implemented by the storage backends, and the services built on
// top of them.
//
// # One vote per user
//
// A vote touches two documents: the poll (tally and voter list) and the
// voter (vote history). The Coordinator records the vote on the user first
// with a conditional push that refuses a second entry for the same poll,
// then performs a conditional update on the poll that only matches while
// the poll is Active and the voter is absent from users_voted. When the
// poll update does not match, the user-side entry is compensated.
//
// # Repositories
//
// UserRepository and PollRepository are implemented by
// pkg/storage/mongo (MongoDB) and pkg/storage/memory (tests and local
// development).
package polling
