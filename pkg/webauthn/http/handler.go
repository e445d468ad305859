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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/webauthn"
)

// Handler provides HTTP handlers for the passkey ceremonies.
type Handler struct {
	service *webauthn.Service
	logger  logger.Logger
}

// NewHandler creates a new ceremony HTTP handler.
func NewHandler(service *webauthn.Service) *Handler {
	return &Handler{
		service: service,
		logger:  logger.NewNop(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(log logger.Logger) *Handler {
	if log != nil {
		h.logger = log
	}
	return h
}

// StartRegistration handles POST /start_reg/{username}
//
// Response: PublicKeyCredentialCreationOptions
// Header: X-Session-Id (nonce for FinishRegistration)
func (h *Handler) StartRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	options, nonce, err := h.service.StartRegistration(r.Context(), pathParam(r, "username"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set(HeaderSessionID, nonce)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishRegistration handles POST /finish_reg
//
// Header: X-Session-Id (from StartRegistration)
// Request body: attestation response from the authenticator
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	nonce := r.Header.Get(HeaderSessionID)
	if nonce == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidSession, "session ID header is required")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		// The ceremony is consumed whatever the outcome.
		h.service.Registrations().Remove(nonce)
		h.writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid attestation response")
		return
	}

	if _, err := h.service.FinishRegistration(r.Context(), nonce, response); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MessageRegistered)
}

// StartAuthentication handles POST /start_auth/{username}
//
// Response: PublicKeyCredentialRequestOptions
func (h *Handler) StartAuthentication(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	options, err := h.service.StartAuthentication(r.Context(), pathParam(r, "username"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, options)
}

// FinishAuthentication handles POST /finish_auth/{username}
//
// Request body: assertion response from the authenticator
// Response: TokenResponse
func (h *Handler) FinishAuthentication(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid assertion response")
		return
	}

	token, err := h.service.FinishAuthentication(r.Context(), pathParam(r, "username"), response)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// pathParam reads a route parameter set by chi or by a Go 1.22 ServeMux
// pattern.
func pathParam(r *http.Request, name string) string {
	if v := chi.URLParam(r, name); v != "" {
		return v
	}
	return r.PathValue(name)
}

// handleServiceError maps service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case webauthn.IsCorruptSession(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidSession, "no matching ceremony in progress")
	case webauthn.IsBadRequest(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "authenticator response rejected")
	case errors.Is(err, webauthn.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
	case errors.Is(err, webauthn.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeUserNotFound, "user not found")
	case errors.Is(err, webauthn.ErrUserAlreadyExists):
		h.writeError(w, http.StatusConflict, ErrorCodeUserExists, "user already exists")
	case errors.Is(err, webauthn.ErrDatabase):
		h.logger.ErrorContext(r.Context(), "storage failure", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, ErrorCodeDatabase, "database error")
	case errors.Is(err, webauthn.ErrToken):
		h.logger.ErrorContext(r.Context(), "token signing failed", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, ErrorCodeToken, "failed to issue token")
	case webauthn.IsUnknown(err):
		h.logger.ErrorContext(r.Context(), "webauthn library failure", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	default:
		h.logger.ErrorContext(r.Context(), "ceremony failed", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			logger.Error(err),
			logger.Int("status", status))
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
