// Package api provides HTTP API handlers for the mudra stream server.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultHistoryLimit caps /api/sessions/history when no limit is given.
const DefaultHistoryLimit = 100

// LiveSessions lists the sessions currently open.
type LiveSessions interface {
	Snapshot() []session.Summary
}

// SessionHistory reads closed-session records.
type SessionHistory interface {
	List(ctx context.Context, limit int) ([]*store.SessionRecord, error)
}

// SessionsHandler serves the live session snapshot.
type SessionsHandler struct {
	live LiveSessions
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(live LiveSessions) *SessionsHandler {
	return &SessionsHandler{live: live}
}

type sessionsResponse struct {
	Sessions []session.Summary `json:"sessions"`
	Count    int               `json:"count"`
}

// ServeHTTP implements the http.Handler interface.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := h.live.Snapshot()
	if sessions == nil {
		sessions = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions, Count: len(sessions)})
}

// HistoryHandler serves closed-session summaries.
type HistoryHandler struct {
	history SessionHistory
	logger  *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history SessionHistory, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logging.OrDiscard(logger)}
}

type historyResponse struct {
	Sessions []*store.SessionRecord `json:"sessions"`
	Count    int                    `json:"count"`
}

// ServeHTTP implements the http.Handler interface.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list session history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if records == nil {
		records = []*store.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Sessions: records, Count: len(records)})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
