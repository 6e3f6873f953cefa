package handler

import (
	"log/slog"
	"net/http"

	"typeduel/internal/cache"
)

const (
	defaultTop = 10
	maxTop     = 100
)

// LeaderboardHandler serves the rating leaderboard
type LeaderboardHandler struct {
	leaderboard cache.LeaderboardCache
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboard cache.LeaderboardCache) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// Top handles GET /v1/leaderboard?top=N
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	if h.leaderboard == nil {
		writeError(w, http.StatusServiceUnavailable, "leaderboard unavailable")
		return
	}

	top := intQuery(r, "top", defaultTop, maxTop)
	entries, err := h.leaderboard.GetTop(r.Context(), top)
	if err != nil {
		slog.Error("leaderboard_read_failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to read leaderboard")
		return
	}
	if entries == nil {
		entries = []cache.LeaderboardEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}
