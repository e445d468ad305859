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

// MountChi mounts the ceremony routes on a chi router.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc)
//	r.Route("/api/auth", func(r chi.Router) {
//	    webauthnhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	for _, route := range h.Routes() {
		r.Method(route.Method, route.Path, route.Handler)
	}
}

// MountStdlib mounts the ceremony routes on a Go 1.22+ http.ServeMux.
// The prefix should not include a trailing slash.
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	for _, route := range h.Routes() {
		mux.Handle(route.Method+" "+prefix+route.Path, route.Handler)
	}
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns the ceremony routes for manual mounting.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: http.MethodPost, Path: "/start_reg/{username}", Handler: h.StartRegistration},
		{Method: http.MethodPost, Path: "/finish_reg", Handler: h.FinishRegistration},
		{Method: http.MethodPost, Path: "/start_auth/{username}", Handler: h.StartAuthentication},
		{Method: http.MethodPost, Path: "/finish_auth/{username}", Handler: h.FinishAuthentication},
	}
}
