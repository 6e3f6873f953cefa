package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"typeduel/internal/cache"
	"typeduel/internal/model"
	"typeduel/internal/progression"
	"typeduel/internal/repository"
	"typeduel/internal/transport/rest/middleware"
)

// UserSource loads user profiles
type UserSource interface {
	User(ctx context.Context, id string) (*model.User, error)
}

// HistorySource reads persisted match records and coin grants
type HistorySource interface {
	GetMatch(ctx context.Context, id string) (*model.MatchRecord, error)
	LedgerFor(ctx context.Context, userID string) ([]model.CoinLedgerEntry, error)
}

// ProfileHandler handles the signed-in player's endpoints
type ProfileHandler struct {
	users       UserSource
	history     HistorySource
	leaderboard cache.LeaderboardCache
}

// NewProfileHandler creates a new profile handler. leaderboard may be nil.
func NewProfileHandler(users UserSource, history HistorySource, leaderboard cache.LeaderboardCache) *ProfileHandler {
	return &ProfileHandler{
		users:       users,
		history:     history,
		leaderboard: leaderboard,
	}
}

// ProfileResponse is the body of GET /v1/me
type ProfileResponse struct {
	ID          string                `json:"id"`
	Username    string                `json:"username"`
	Rating      int                   `json:"rating"`
	CoinBalance int                   `json:"coinBalance"`
	Level       progression.LevelInfo `json:"level"`
	Rank        *int64                `json:"rank"` // nil when unranked or unknown
}

// Me handles GET /v1/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.users.User(r.Context(), userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.Error("profile_read_failed", slog.String("user", userID), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	resp := ProfileResponse{
		ID:          user.ID,
		Username:    model.DisplayName(user.Username, user.Email),
		Rating:      user.Rating,
		CoinBalance: user.CoinBalance,
		Level:       progression.LevelFromXP(user.XP),
	}
	if h.leaderboard != nil {
		if rank, err := h.leaderboard.GetRank(r.Context(), userID); err == nil && rank > 0 {
			resp.Rank = &rank
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ledger handles GET /v1/me/ledger
func (h *ProfileHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	entries, err := h.history.LedgerFor(r.Context(), userID)
	if err != nil {
		slog.Error("ledger_read_failed", slog.String("user", userID), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}
	if entries == nil {
		entries = []model.CoinLedgerEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}

// Match handles GET /v1/matches/{id}
func (h *ProfileHandler) Match(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.history.GetMatch(r.Context(), id)
	if err != nil {
		slog.Error("match_read_failed", slog.String("match", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load match")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
