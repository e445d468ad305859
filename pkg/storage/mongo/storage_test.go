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

package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_RequiresURI(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.ErrorContains(t, err, "uri is required")
}
