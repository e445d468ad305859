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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passpoll/pkg/correlation"
)

func newJSONLogger(level Level) (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSlogAdapter(&SlogConfig{Level: level, Format: "json", Output: &buf}), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("Error"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestNewSlogAdapter_NilConfig(t *testing.T) {
	l := NewSlogAdapter(nil)
	require.NotNil(t, l)
	assert.NotNil(t, l.Slog())
}

func TestSlogAdapter_JSONFields(t *testing.T) {
	l, buf := newJSONLogger(LevelDebug)

	l.Info("vote recorded",
		String("user_name", "alice"),
		Int64("poll_id", 7),
		Int("count", 2),
		Bool("ok", true),
		Duration("took", time.Second),
		Any("tags", []string{"a"}))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "vote recorded", lines[0]["msg"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "alice", lines[0]["user_name"])
	assert.EqualValues(t, 7, lines[0]["poll_id"])
	assert.Equal(t, true, lines[0]["ok"])
}

func TestSlogAdapter_LevelFiltering(t *testing.T) {
	l, buf := newJSONLogger(LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown", Error(errors.New("boom")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestSlogAdapter_With(t *testing.T) {
	l, buf := newJSONLogger(LevelInfo)

	child := l.With(String("component", "webauthn")).WithError(errors.New("bad"))
	child.Info("ceremony failed")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "webauthn", lines[0]["component"])
	assert.Equal(t, "bad", lines[0]["error"])
}

func TestSlogAdapter_ContextAddsCorrelationID(t *testing.T) {
	l, buf := newJSONLogger(LevelDebug)
	ctx := correlation.WithCorrelationID(context.Background(), "corr-42")

	l.DebugContext(ctx, "d")
	l.InfoContext(ctx, "i")
	l.WarnContext(ctx, "w")
	l.ErrorContext(context.Background(), "e")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	for _, line := range lines[:3] {
		assert.Equal(t, "corr-42", line["correlation_id"])
	}
	assert.NotContains(t, lines[3], "correlation_id")
}

func TestSlogAdapter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(&SlogConfig{Level: LevelInfo, Format: "text", Output: &buf})
	l.Info("hello", String("k", "v"))
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestSlogAdapter_CustomHandler(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})
	l := NewSlogAdapter(&SlogConfig{Handler: h})
	l.Warn("dropped")
	l.Error("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	l.ErrorContext(context.Background(), "nothing")
	assert.Equal(t, l, l.With(String("a", "b")))
	assert.Equal(t, l, l.WithError(errors.New("x")))
}
