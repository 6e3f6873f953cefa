package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"typeduel/internal/model"
	"typeduel/internal/repository"
	"typeduel/internal/transport/rest/middleware"
)

// SoloRecorder stores finished solo runs
type SoloRecorder interface {
	Finish(ctx context.Context, userID string, stats model.TerminalStats) (*model.SoloResult, error)
}

// SoloHandler handles solo practice runs
type SoloHandler struct {
	runs SoloRecorder
}

// NewSoloHandler creates a new solo handler. runs may be nil.
func NewSoloHandler(runs SoloRecorder) *SoloHandler {
	return &SoloHandler{runs: runs}
}

// soloFinishRequest accepts the stats either wrapped in "stats" or at the top level
type soloFinishRequest struct {
	Stats *model.TerminalStats `json:"stats"`
	model.TerminalStats
}

// Finish handles POST /v1/solo/finish
func (h *SoloHandler) Finish(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "solo runs unavailable")
		return
	}
	userID := middleware.GetUserID(r.Context())

	var req soloFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	stats := req.TerminalStats
	if req.Stats != nil {
		stats = *req.Stats
	}

	res, err := h.runs.Finish(r.Context(), userID, stats)
	if errors.Is(err, repository.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.Error("solo_finish_failed", slog.String("user", userID), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to record solo run")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
