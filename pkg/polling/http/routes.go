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

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the poll routes on a chi router. Callers are expected to
// install authentication middleware on r first.
//
// Example:
//
//	r.Route("/api", func(r chi.Router) {
//	    r.Use(authMiddleware)
//	    pollhttp.MountChi(r, pollhttp.NewHandler(svc))
//	})
func MountChi(r chi.Router, h *Handler) {
	for _, route := range h.Routes() {
		r.Method(route.Method, route.Path, route.Handler)
	}
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns the poll routes for manual mounting.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: http.MethodPost, Path: "/polls", Handler: h.CreatePoll},
		{Method: http.MethodPost, Path: "/polls/vote", Handler: h.Vote},
		{Method: http.MethodGet, Path: "/polls/{poll_id}", Handler: h.GetPoll},
		{Method: http.MethodDelete, Path: "/polls/{poll_id}", Handler: h.DeletePoll},
		{Method: http.MethodPost, Path: "/polls/{poll_id}/reset", Handler: h.ResetPoll},
		{Method: http.MethodPost, Path: "/polls/{poll_id}/close", Handler: h.ClosePoll},
		{Method: http.MethodGet, Path: "/polls/{poll_id}/results", Handler: h.Results},
	}
}

func pathParam(r *http.Request, name string) string {
	if v := chi.URLParam(r, name); v != "" {
		return v
	}
	return r.PathValue(name)
}
