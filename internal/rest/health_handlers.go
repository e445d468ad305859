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

package rest

import (
	"context"
	"net/http"

	"github.com/jeremyhahn/go-passpoll/pkg/health"
)

// HealthChecker reports liveness and readiness.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
}

// HealthCheckResponse represents the response for health check endpoints.
type HealthCheckResponse struct {
	Status  health.Status        `json:"status"`
	Message string               `json:"message,omitempty"`
	Checks  []health.CheckResult `json:"checks,omitempty"`
}

// HealthHandler handles GET /health. It reports readiness in one document.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.ReadinessHandler(w, r)
}

// LivenessHandler handles GET /health/live. It only fails when the
// process is shutting down.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service is alive"}, http.StatusOK)
		return
	}

	result := s.health.Live(r.Context())
	statusCode := http.StatusOK
	if result.Status != health.StatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, HealthCheckResponse{Status: result.Status, Message: result.Message}, statusCode)
}

// ReadinessHandler handles GET /health/ready. It fails while the server is
// starting or when a dependency check fails.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service is ready"}, http.StatusOK)
		return
	}

	results := s.health.Ready(r.Context())
	resp := HealthCheckResponse{
		Status: health.AggregateStatus(results),
		Checks: results,
	}

	statusCode := http.StatusOK
	if resp.Status == health.StatusHealthy {
		resp.Message = "All checks passed"
	} else {
		resp.Message = "One or more checks failed"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, resp, statusCode)
}
