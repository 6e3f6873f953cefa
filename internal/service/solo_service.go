package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"typeduel/internal/cache"
	"typeduel/internal/metrics"
	"typeduel/internal/model"
	"typeduel/internal/progression"
)

// SoloCommitter persists a solo run together with its XP
type SoloCommitter interface {
	CommitSoloRun(ctx context.Context, run *model.SoloRun) (*model.ProgressUpdate, error)
}

// SoloService records practice runs. They share the leveling curve and coin
// rule with ranked matches but leave the rating alone.
type SoloService struct {
	store   SoloCommitter
	xp      progression.XPPolicy
	clock   clockwork.Clock
	logger  *slog.Logger
	users   cache.UserCache
	metrics *metrics.Collectors
}

// NewSoloService creates a new solo service
func NewSoloService(store SoloCommitter, xp progression.XPPolicy, clock clockwork.Clock, logger *slog.Logger) *SoloService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SoloService{
		store:  store,
		xp:     xp,
		clock:  clock,
		logger: logger,
	}
}

func (s *SoloService) SetUserCache(c cache.UserCache) {
	s.users = c
}

func (s *SoloService) SetMetrics(m *metrics.Collectors) {
	s.metrics = m
}

// Finish stores a finished solo run for userID and awards its XP
func (s *SoloService) Finish(ctx context.Context, userID string, stats model.TerminalStats) (*model.SoloResult, error) {
	clean := stats.Sanitized()
	run := &model.SoloRun{
		ID:        uuid.NewString(),
		UserID:    userID,
		WPM:       clean.WPM,
		Acc:       clean.Acc,
		Typed:     clean.Typed,
		Correct:   clean.Correct,
		Errors:    clean.Errors,
		ElapsedMS: clean.Elapsed,
		XPGain:    s.xp.SoloXP(clean.WPM, clean.Acc, clean.Elapsed),
		CreatedAt: s.clock.Now(),
	}

	update, err := s.store.CommitSoloRun(ctx, run)
	if err != nil {
		return nil, err
	}
	s.metrics.SoloRunRecorded()

	if s.users != nil {
		if err := s.users.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("user_cache_invalidate_failed", slog.Any("err", err))
		}
	}
	if update.Level > update.LevelBefore {
		s.logger.Info("level_up",
			slog.String("user", userID),
			slog.Int("level", update.Level),
			slog.Int("coins", update.CoinsEarned),
		)
	}

	return &model.SoloResult{
		RunID:       run.ID,
		XPGained:    update.XPGain,
		XPTotal:     update.XP,
		LevelBefore: update.LevelBefore,
		Level:       update.Level,
		CoinsEarned: update.CoinsEarned,
		CoinBalance: update.CoinBalance,
	}, nil
}
