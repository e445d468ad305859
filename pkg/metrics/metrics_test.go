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

package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpVote, "coordinator", StatusSuccess, 5*time.Millisecond)
	if got := testutil.CollectAndCount(OperationsTotal); got != 1 {
		t.Errorf("Expected 1 operation series, got %d", got)
	}

	RecordOperation(OpBeginLogin, "webauthn", StatusError, time.Millisecond)
	if got := testutil.CollectAndCount(OperationsTotal); got != 2 {
		t.Errorf("Expected 2 operation series, got %d", got)
	}

	v := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpVote, "coordinator", StatusSuccess))
	if v != 1 {
		t.Errorf("Expected vote counter 1, got %v", v)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()
	OperationsTotal.Reset()

	RecordOperation(OpVote, "coordinator", StatusSuccess, time.Millisecond)

	if got := testutil.CollectAndCount(OperationsTotal); got != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", got)
	}
}

func TestStatusOf(t *testing.T) {
	if StatusOf(nil) != StatusSuccess {
		t.Error("nil error should map to success")
	}
	if StatusOf(errors.New("boom")) != StatusError {
		t.Error("non-nil error should map to error")
	}
}

func TestPendingChallenges(t *testing.T) {
	Enable()
	PendingChallenges.Reset()
	ExpiredChallengesTotal.Reset()

	SetPendingChallenges(CeremonyRegistration, 3)
	RecordExpiredChallenges(CeremonyRegistration, 2)
	RecordExpiredChallenges(CeremonyRegistration, 0)

	if v := testutil.ToFloat64(PendingChallenges.WithLabelValues(CeremonyRegistration)); v != 3 {
		t.Errorf("Expected 3 pending, got %v", v)
	}
	if v := testutil.ToFloat64(ExpiredChallengesTotal.WithLabelValues(CeremonyRegistration)); v != 2 {
		t.Errorf("Expected 2 expired, got %v", v)
	}
}

func TestVoteAndPollCounters(t *testing.T) {
	Enable()
	before := testutil.ToFloat64(VotesTotal)
	RecordVote()
	if v := testutil.ToFloat64(VotesTotal); v != before+1 {
		t.Errorf("Expected votes %v, got %v", before+1, v)
	}

	expired := testutil.ToFloat64(ExpiredPollsTotal)
	RecordExpiredPolls(4)
	RecordExpiredPolls(-1)
	if v := testutil.ToFloat64(ExpiredPollsTotal); v != expired+4 {
		t.Errorf("Expected expired polls %v, got %v", expired+4, v)
	}
}

func TestSetStorageHealth(t *testing.T) {
	Enable()
	SetStorageHealth("mongodb", true)
	if v := testutil.ToFloat64(StorageHealthy.WithLabelValues("mongodb")); v != 1 {
		t.Errorf("Expected 1, got %v", v)
	}
	SetStorageHealth("mongodb", false)
	if v := testutil.ToFloat64(StorageHealthy.WithLabelValues("mongodb")); v != 0 {
		t.Errorf("Expected 0, got %v", v)
	}
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	Enable()

	testCases := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"400 Bad Request", http.StatusBadRequest},
		{"404 Not Found", http.StatusNotFound},
		{"500 Internal Server Error", http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			HTTPRequestsTotal.Reset()

			handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/polls", nil))

			if rec.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, rec.Code)
			}
			if got := testutil.CollectAndCount(HTTPRequestsTotal); got != 1 {
				t.Errorf("Expected 1 request series, got %d", got)
			}
		})
	}
}

func TestHTTPMiddlewareFlush(t *testing.T) {
	Enable()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Flusher")
		}
		_, _ = w.Write([]byte("data: x\n\n"))
		f.Flush()
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/polls/1/results", nil))

	if !rec.Flushed {
		t.Error("Expected recorder to be flushed")
	}
}

func TestConnectionTracker(t *testing.T) {
	Enable()
	ActiveConnections.Reset()

	tracker := NewConnectionTracker(ProtocolSSE)
	if v := testutil.ToFloat64(ActiveConnections.WithLabelValues(ProtocolSSE)); v != 1 {
		t.Errorf("Expected 1 active stream, got %v", v)
	}
	tracker.Close()
	if v := testutil.ToFloat64(ActiveConnections.WithLabelValues(ProtocolSSE)); v != 0 {
		t.Errorf("Expected 0 active streams, got %v", v)
	}
	if tracker.Duration() < 0 {
		t.Error("Expected non-negative duration")
	}
}

func TestResourceCollectorRunsSamplers(t *testing.T) {
	Enable()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := NewResourceCollector(ctx, 20*time.Millisecond, func() { calls.Add(1) })
	done := make(chan struct{})
	go func() {
		collector.Start()
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	collector.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Collector did not stop")
	}

	if calls.Load() < 2 {
		t.Errorf("Expected sampler to run at least twice, ran %d", calls.Load())
	}
	if testutil.ToFloat64(Goroutines) == 0 {
		t.Error("Expected goroutines gauge to be set")
	}
}
