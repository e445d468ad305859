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
	"runtime"
	"time"
)

// Sampler refreshes application gauges. Samplers run on every collector tick
// after the runtime gauges are updated.
type Sampler func()

// ResourceCollector periodically updates process gauges (goroutines, memory,
// GC pauses, uptime) and runs the registered samplers.
type ResourceCollector struct {
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	started  time.Time
	samplers []Sampler
}

// NewResourceCollector creates a collector that ticks every interval until
// ctx is cancelled or Stop is called.
//
// Example:
//
//	collector := metrics.NewResourceCollector(ctx, 30*time.Second, func() {
//	    metrics.SetPendingChallenges(metrics.CeremonyRegistration, registrations.Count())
//	})
//	go collector.Start()
//	defer collector.Stop()
func NewResourceCollector(ctx context.Context, interval time.Duration, samplers ...Sampler) *ResourceCollector {
	collectorCtx, cancel := context.WithCancel(ctx)
	return &ResourceCollector{
		ctx:      collectorCtx,
		cancel:   cancel,
		interval: interval,
		started:  time.Now(),
		samplers: samplers,
	}
}

// Start collects immediately and then on every tick. It blocks until the
// collector is stopped.
func (rc *ResourceCollector) Start() {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.collect()

	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			rc.collect()
		}
	}
}

// Stop halts the resource collector.
func (rc *ResourceCollector) Stop() {
	rc.cancel()
}

func (rc *ResourceCollector) collect() {
	if !IsEnabled() {
		return
	}
	CollectOnce()
	ServerUptime.Set(time.Since(rc.started).Seconds())
	for _, sample := range rc.samplers {
		sample()
	}
}

// CollectOnce updates the runtime gauges a single time.
func CollectOnce() {
	if !IsEnabled() {
		return
	}

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	MemoryAllocBytes.Set(float64(memStats.Alloc))
	MemorySysBytes.Set(float64(memStats.Sys))
	GCPauseTotalSeconds.Set(float64(memStats.PauseTotalNs) / 1e9)
}

// StartResourceCollector creates a collector and starts it in a goroutine.
func StartResourceCollector(ctx context.Context, interval time.Duration, samplers ...Sampler) *ResourceCollector {
	collector := NewResourceCollector(ctx, interval, samplers...)
	go collector.Start()
	return collector
}
