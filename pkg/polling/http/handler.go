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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/auth"
	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/metrics"
	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

// Handler provides HTTP handlers for polls and votes. Every route expects
// an authenticated identity in the request context.
type Handler struct {
	service      *polling.Service
	logger       logger.Logger
	liveInterval time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new poll HTTP handler.
func NewHandler(service *polling.Service) *Handler {
	return &Handler{
		service:      service,
		logger:       logger.NewNop(),
		liveInterval: DefaultLiveInterval,
		closing:      make(chan struct{}),
	}
}

// CloseStreams ends every open live-results stream and makes new ones end
// after their first frame. Safe to call more than once.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() {
		close(h.closing)
	})
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(log logger.Logger) *Handler {
	if log != nil {
		h.logger = log
	}
	return h
}

// WithLiveInterval sets the push interval of live results.
func (h *Handler) WithLiveInterval(d time.Duration) *Handler {
	if d > 0 {
		h.liveInterval = d
	}
	return h
}

// CreatePoll handles POST /polls
//
// Request body: PollInput
// Response: the created Poll
func (h *Handler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var input polling.PollInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	poll, err := h.service.CreatePoll(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, poll)
}

// GetPoll handles GET /polls/{poll_id}. Poll id 0 lists every poll.
func (h *Handler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.pollID(w, r)
	if !ok {
		return
	}

	if pollID == 0 {
		polls, err := h.service.ListPolls(r.Context())
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, polls)
		return
	}

	poll, err := h.service.GetPoll(r.Context(), pollID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, poll)
}

// Vote handles POST /polls/vote
//
// Request body: VoteRequest. The username must belong to the caller.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	var req polling.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	err := h.service.CastVoteAs(r.Context(), auth.SubjectFrom(r.Context()), req)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, MessageResponse{Message: MessageVoteCast})
	case polling.IsAlreadyVoted(err):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MessageAlreadyVoted})
	default:
		h.handleServiceError(w, r, err)
	}
}

// ResetPoll handles POST /polls/{poll_id}/reset
func (h *Handler) ResetPoll(w http.ResponseWriter, r *http.Request) {
	h.ownerOp(w, r, h.service.ResetPoll, MessagePollReset)
}

// ClosePoll handles POST /polls/{poll_id}/close
func (h *Handler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	h.ownerOp(w, r, h.service.ClosePoll, MessagePollClosed)
}

// DeletePoll handles DELETE /polls/{poll_id}
func (h *Handler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.pollID(w, r)
	if !ok {
		return
	}
	err := h.service.DeletePoll(r.Context(), auth.SubjectFrom(r.Context()), pollID)
	switch {
	case err == nil:
		writeText(w, http.StatusOK, MessagePollDeleted)
	case polling.IsPollNotFound(err):
		writeText(w, http.StatusNotFound, MessagePollGone)
	default:
		h.handleServiceError(w, r, err)
	}
}

// Results handles GET /polls/{poll_id}/results?live=bool
//
// Without live the current Poll is returned. With live=true the poll is
// streamed as server-sent events until the client goes away or the poll
// is deleted.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.pollID(w, r)
	if !ok {
		return
	}

	live := false
	if v := r.URL.Query().Get("live"); v != "" {
		var err error
		if live, err = strconv.ParseBool(v); err != nil {
			h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "live must be a boolean")
			return
		}
	}

	if live {
		h.streamResults(w, r, pollID)
		return
	}

	poll, err := h.service.Results(r.Context(), pollID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, poll)
}

func (h *Handler) streamResults(w http.ResponseWriter, r *http.Request, pollID int64) {
	ctx := r.Context()
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	tracker := metrics.NewConnectionTracker(metrics.ProtocolSSE)
	defer tracker.Close()

	ticker := time.NewTicker(h.liveInterval)
	defer ticker.Stop()

	for {
		poll, err := h.service.Results(ctx, pollID)
		switch {
		case errors.Is(err, polling.ErrPollNotFound):
			_, _ = fmt.Fprintf(w, "data: %s\n\n", MessageStreamGone)
			_ = rc.Flush()
			return
		case err != nil:
			h.logger.ErrorContext(ctx, "live results failed",
				logger.Int64("poll_id", pollID),
				logger.Error(err))
			return
		}

		payload, err := json.Marshal(poll)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to encode poll", logger.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			h.logger.DebugContext(ctx, "live results client disconnected",
				logger.Int64("poll_id", pollID),
				logger.Duration("duration", tracker.Duration()))
			return
		case <-h.closing:
			h.logger.DebugContext(ctx, "live results closed by server",
				logger.Int64("poll_id", pollID))
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) ownerOp(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, int64) error, message string) {
	pollID, ok := h.pollID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), auth.SubjectFrom(r.Context()), pollID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, message)
}

func (h *Handler) pollID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(pathParam(r, "poll_id"), 10, 64)
	if err != nil || id < 0 {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid poll id")
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, polling.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
	case polling.IsAlreadyVoted(err):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MessageAlreadyVoted})
	case errors.Is(err, polling.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "unauthorized")
	case errors.Is(err, polling.ErrForbidden):
		h.writeError(w, http.StatusForbidden, ErrorCodeForbidden, "only the poll creator may do this")
	case polling.IsPollNotFound(err):
		h.writeError(w, http.StatusNotFound, ErrorCodePollNotFound, "poll not found")
	case polling.IsUserNotFound(err):
		h.writeError(w, http.StatusNotFound, ErrorCodeUserNotFound, "user not found")
	case polling.IsDatabase(err):
		h.logger.ErrorContext(r.Context(), "storage failure", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, ErrorCodeDatabase, "database error")
	default:
		h.logger.ErrorContext(r.Context(), "poll request failed", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			logger.Error(err),
			logger.Int("status", status))
	}
}

// writeText writes a plain-text response.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
