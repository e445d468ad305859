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

package correlation

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", GetCorrelationID(ctx))

	//nolint:staticcheck // nil context is handled explicitly
	ctx = WithCorrelationID(nil, "from-nil")
	assert.Equal(t, "from-nil", GetCorrelationID(ctx))
}

func TestGetCorrelationID_Missing(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Empty(t, GetCorrelationID(nil))
}

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestGetOrGenerate(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "existing")
	assert.Equal(t, "existing", GetOrGenerate(ctx))

	generated := GetOrGenerate(context.Background())
	assert.NotEmpty(t, generated)
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "correlation header wins",
			headers: map[string]string{CorrelationIDHeader: "corr-1", RequestIDHeader: "req-1"},
			want:    "corr-1",
		},
		{
			name:    "request header fallback",
			headers: map[string]string{RequestIDHeader: "req-1"},
			want:    "req-1",
		},
		{
			name:    "blank header ignored",
			headers: map[string]string{CorrelationIDHeader: "   ", RequestIDHeader: "req-2"},
			want:    "req-2",
		},
		{
			name:    "control characters rejected",
			headers: map[string]string{CorrelationIDHeader: "bad\tid"},
		},
		{
			name:    "oversized rejected",
			headers: map[string]string{CorrelationIDHeader: strings.Repeat("a", maxIDLength+1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			got := FromRequest(r)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
				return
			}
			_, err := uuid.Parse(got)
			assert.NoError(t, err, "expected a generated id, got %q", got)
		})
	}
}

func BenchmarkGetCorrelationID(b *testing.B) {
	ctx := WithCorrelationID(context.Background(), NewID())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GetCorrelationID(ctx)
	}
}
