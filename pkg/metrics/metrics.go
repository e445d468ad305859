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

// Package metrics provides Prometheus instrumentation for passpoll.
// It exposes ceremony and voting counters, latency histograms, pending
// challenge gauges and process resource gauges.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passpoll metrics
	Namespace = "passpoll"

	// Label names
	LabelOperation  = "operation"
	LabelComponent  = "component"
	LabelStatus     = "status"
	LabelErrorType  = "error_type"
	LabelProtocol   = "protocol"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"
	LabelCeremony   = "ceremony"

	// Status values
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"

	// Operation names
	OpBeginRegistration  = "begin_registration"
	OpFinishRegistration = "finish_registration"
	OpBeginLogin         = "begin_login"
	OpFinishLogin        = "finish_login"
	OpVote               = "vote"
	OpCreatePoll         = "create_poll"
	OpUpdatePoll         = "update_poll"
	OpDeletePoll         = "delete_poll"
	OpExpirePolls        = "expire_polls"
	OpHealthCheck        = "health_check"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"
)

var (
	// OperationsTotal tracks operations by name, component and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of passpoll operations by type, component, and status",
		},
		[]string{LabelOperation, LabelComponent, LabelStatus},
	)

	// OperationDuration tracks the duration of operations in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of passpoll operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelOperation, LabelComponent},
	)

	// ErrorsTotal tracks errors by operation, component and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, component, and error type",
		},
		[]string{LabelOperation, LabelComponent, LabelErrorType},
	)

	// ActiveConnections tracks open connections by protocol (http, sse).
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of active connections by protocol",
		},
		[]string{LabelProtocol},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// PendingChallenges tracks ceremony slots waiting for a finish call.
	PendingChallenges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pending_challenges",
			Help:      "Number of WebAuthn ceremonies awaiting completion",
		},
		[]string{LabelCeremony},
	)

	// ExpiredChallengesTotal counts ceremony slots evicted by the TTL sweep.
	ExpiredChallengesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "expired_challenges_total",
			Help:      "Total number of WebAuthn ceremonies evicted after their TTL",
		},
		[]string{LabelCeremony},
	)

	// VotesTotal counts accepted votes.
	VotesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "votes_total",
			Help:      "Total number of accepted votes",
		},
	)

	// ExpiredPollsTotal counts polls moved to Expired by the sweeper.
	ExpiredPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "expired_polls_total",
			Help:      "Total number of polls expired by the sweeper",
		},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC stop-the-world pauses.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// StorageHealthy indicates whether the repository backend is healthy (1) or not (0).
	StorageHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "storage_healthy",
			Help:      "Indicates whether a storage backend is healthy (1) or unhealthy (0)",
		},
		[]string{LabelComponent},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	err := coordinator.Vote(ctx, req)
//	metrics.RecordOperation(metrics.OpVote, "coordinator", metrics.StatusOf(err), time.Since(start))
func RecordOperation(operation, component, status string, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, component, status).Inc()
	OperationDuration.WithLabelValues(operation, component).Observe(duration.Seconds())
}

// StatusOf maps an error to StatusSuccess or StatusError.
func StatusOf(err error) string {
	if err == nil {
		return StatusSuccess
	}
	return StatusError
}

// RecordError records an error event with context about where it occurred.
func RecordError(operation, component, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, component, errorType).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// RecordVote increments the accepted vote counter.
func RecordVote() {
	if !enabled.Load() {
		return
	}
	VotesTotal.Inc()
}

// RecordExpiredPolls adds n to the expired poll counter.
func RecordExpiredPolls(n int) {
	if !enabled.Load() || n <= 0 {
		return
	}
	ExpiredPollsTotal.Add(float64(n))
}

// SetPendingChallenges sets the pending slot gauge for a ceremony.
func SetPendingChallenges(ceremony string, count int) {
	if !enabled.Load() {
		return
	}
	PendingChallenges.WithLabelValues(ceremony).Set(float64(count))
}

// RecordExpiredChallenges adds n to the evicted slot counter for a ceremony.
func RecordExpiredChallenges(ceremony string, n int) {
	if !enabled.Load() || n <= 0 {
		return
	}
	ExpiredChallengesTotal.WithLabelValues(ceremony).Add(float64(n))
}

// IncrementActiveConnections increments the active connection count for a protocol.
func IncrementActiveConnections(protocol string) {
	if !enabled.Load() {
		return
	}
	ActiveConnections.WithLabelValues(protocol).Inc()
}

// DecrementActiveConnections decrements the active connection count for a protocol.
func DecrementActiveConnections(protocol string) {
	if !enabled.Load() {
		return
	}
	ActiveConnections.WithLabelValues(protocol).Dec()
}

// SetStorageHealth sets the health gauge of a storage backend.
func SetStorageHealth(component string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	StorageHealthy.WithLabelValues(component).Set(value)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
