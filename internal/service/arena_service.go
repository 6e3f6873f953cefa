package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"typeduel/internal/cache"
	"typeduel/internal/metrics"
	"typeduel/internal/model"
	"typeduel/internal/progression"
	"typeduel/internal/repository"
)

// ArenaConfig tunes matchmaking and session timing
type ArenaConfig struct {
	LimitSec          int
	StartDelay        time.Duration // between matchFound and the start signal
	InactivityTimeout time.Duration
	DeadlineGrace     time.Duration // past the time limit before open slots are closed
	EloK              float64
	XP                progression.XPPolicy
	CommitTimeout     time.Duration
	CommitWorkers     int
}

func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		LimitSec:          20,
		StartDelay:        2 * time.Second,
		InactivityTimeout: 15 * time.Second,
		DeadlineGrace:     5 * time.Second,
		EloK:              DefaultEloK,
		XP:                progression.DefaultXPPolicy,
		CommitTimeout:     10 * time.Second,
		CommitWorkers:     8,
	}
}

// OutcomeCommitter persists a resolved match
type OutcomeCommitter interface {
	CommitMatchOutcome(ctx context.Context, outcome *model.MatchOutcome) ([]model.ProgressUpdate, error)
}

// ArenaService owns the matchmaking queue and every live session. All
// mutations go through one mutex; persistence happens after it is released.
type ArenaService struct {
	mu       sync.Mutex
	cfg      ArenaConfig
	clock    clockwork.Clock
	logger   *slog.Logger
	queue    *MatchQueue
	registry *SessionRegistry
	// ratings resolved in this process, newer than what connections authenticated with.
	// An entry lives while the user has a live connection or an uncommitted outcome.
	ratings   map[string]int
	connUser  map[string]string
	liveConns map[string]int
	unsettled map[string]int

	challenges  ChallengeGenerator
	committer   OutcomeCommitter
	broadcaster Broadcaster
	pending     cache.PendingOutcomeQueue
	leaderboard cache.LeaderboardCache
	users       cache.UserCache
	metrics     *metrics.Collectors

	commits errgroup.Group
}

// NewArenaService creates a new arena
func NewArenaService(cfg ArenaConfig, clock clockwork.Clock, committer OutcomeCommitter, challenges ChallengeGenerator, logger *slog.Logger) *ArenaService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if challenges == nil {
		challenges = NewWordChallengeGenerator()
	}
	a := &ArenaService{
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		queue:      NewMatchQueue(),
		registry:   NewSessionRegistry(),
		ratings:    make(map[string]int),
		connUser:   make(map[string]string),
		liveConns:  make(map[string]int),
		unsettled:  make(map[string]int),
		challenges: challenges,
		committer:  committer,
	}
	if cfg.CommitWorkers > 0 {
		a.commits.SetLimit(cfg.CommitWorkers)
	}
	return a
}

// SetBroadcaster sets the WebSocket broadcaster
func (a *ArenaService) SetBroadcaster(b Broadcaster) {
	a.broadcaster = b
}

// SetPendingQueue sets where failed commits are parked for retry
func (a *ArenaService) SetPendingQueue(q cache.PendingOutcomeQueue) {
	a.pending = q
}

func (a *ArenaService) SetLeaderboard(lb cache.LeaderboardCache) {
	a.leaderboard = lb
}

func (a *ArenaService) SetUserCache(c cache.UserCache) {
	a.users = c
}

func (a *ArenaService) SetMetrics(m *metrics.Collectors) {
	a.metrics = m
}

// JoinQueue puts an authenticated connection in the matchmaking queue and
// pairs as many players as possible. A connection already queued or
// playing is left alone.
func (a *ArenaService) JoinQueue(connID string, identity *model.Identity) {
	a.dispatch(func(now time.Time) []*model.MatchOutcome {
		if identity == nil {
			a.send(connID, model.EventQueueError, model.QueueErrorEvent{Error: model.ErrCodeNotAuthenticated})
			return nil
		}
		if _, playing := a.registry.Lookup(connID); playing {
			return nil
		}
		if _, known := a.connUser[connID]; !known {
			a.connUser[connID] = identity.UserID
			a.liveConns[identity.UserID]++
		}

		rating := identity.Rating
		if r, ok := a.ratings[identity.UserID]; ok {
			rating = r
		}
		added := a.queue.Add(model.WaitingPlayer{
			ConnID:   connID,
			UserID:   identity.UserID,
			Username: identity.Username,
			Rating:   rating,
			JoinedAt: now,
		})
		if added {
			a.pairLocked(now)
		}
		return nil
	})
}

// Progress relays a live snapshot to the opponent
func (a *ArenaService) Progress(connID string, msg model.ProgressMessage) {
	a.dispatch(func(now time.Time) []*model.MatchOutcome {
		s, slot, ok := a.sessionOfLocked(connID, msg.RoomID)
		if !ok || !s.ApplyProgress(slot, msg.LiveProgress, now) {
			return nil
		}
		a.send(s.Players[slot.Other()].ConnID, model.EventOpponentProgress, model.OpponentProgressEvent{
			RoomID:       s.ID,
			LiveProgress: msg.LiveProgress,
		})
		return nil
	})
}

// Finish records a participant's final stats and resolves the session once
// both sides are done.
func (a *ArenaService) Finish(connID string, msg model.FinishMessage) {
	a.dispatch(func(now time.Time) []*model.MatchOutcome {
		s, slot, ok := a.sessionOfLocked(connID, msg.RoomID)
		if !ok || !s.ApplyFinish(slot, msg.Stats, now) {
			return nil
		}
		return a.resolveLocked(s, now)
	})
}

// Disconnect removes a queued connection silently, or forfeits the
// session it is playing.
func (a *ArenaService) Disconnect(connID string) {
	a.dispatch(func(now time.Time) []*model.MatchOutcome {
		defer a.releaseConnLocked(connID)
		if a.queue.Remove(connID) {
			return nil
		}
		s, ok := a.registry.Lookup(connID)
		if !ok {
			return nil
		}
		slot, _ := s.SlotOf(connID)
		if !s.ForfeitDisconnect(slot, now) {
			return nil
		}
		return a.resolveLocked(s, now)
	})
}

// Sweep forfeits idle participants, closes sessions past their deadline and
// resolves whatever became complete.
func (a *ArenaService) Sweep() {
	a.dispatch(func(now time.Time) []*model.MatchOutcome {
		var outcomes []*model.MatchOutcome
		for _, s := range a.registry.Sessions() {
			s.ForfeitInactive(now, a.cfg.InactivityTimeout)
			s.EnforceDeadline(now, a.cfg.DeadlineGrace)
			outcomes = append(outcomes, a.resolveLocked(s, now)...)
		}
		return outcomes
	})
}

// RetryPending re-commits parked outcomes until the queue is empty or a
// commit fails again.
func (a *ArenaService) RetryPending(ctx context.Context) (int, error) {
	if a.pending == nil {
		return 0, nil
	}
	committed := 0
	for {
		outcome, err := a.pending.Pop(ctx)
		if err != nil {
			return committed, err
		}
		if outcome == nil {
			return committed, nil
		}

		err = a.commitOutcome(ctx, outcome)
		switch {
		case err == nil:
			committed++
			a.settle(outcome)
		case errors.Is(err, repository.ErrInvalidOutcome), errors.Is(err, repository.ErrUserNotFound):
			a.logger.Error("pending_outcome_dropped",
				slog.String("session", outcome.SessionID),
				slog.Any("err", err),
			)
			a.settle(outcome)
		default:
			if pushErr := a.pending.Push(ctx, outcome); pushErr != nil {
				a.logger.Error("pending_outcome_lost",
					slog.String("session", outcome.SessionID),
					slog.Any("err", pushErr),
				)
			}
			return committed, err
		}
	}
}

// Wait blocks until every in-flight commit has finished
func (a *ArenaService) Wait() {
	_ = a.commits.Wait()
}

func (a *ArenaService) QueueDepth() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue.Len()
}

func (a *ArenaService) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Len()
}

// dispatch runs fn under the arena lock, then hands resolved outcomes to
// the commit workers.
func (a *ArenaService) dispatch(fn func(now time.Time) []*model.MatchOutcome) {
	a.mu.Lock()
	outcomes := fn(a.clock.Now())
	a.metrics.SetQueueDepth(a.queue.Len())
	a.metrics.SetActiveSessions(a.registry.Len())
	a.mu.Unlock()

	for _, o := range outcomes {
		a.commitAsync(o)
	}
}

func (a *ArenaService) sessionOfLocked(connID, roomID string) (*MatchSession, Slot, bool) {
	s, ok := a.registry.Lookup(connID)
	if !ok || s.ID != roomID {
		return nil, NoWinner, false
	}
	slot, ok := s.SlotOf(connID)
	return s, slot, ok
}

func (a *ArenaService) pairLocked(now time.Time) {
	for {
		p1, p2, ok := a.queue.Pair()
		if !ok {
			return
		}

		s := NewMatchSession(
			uuid.NewString(),
			participantOf(p1),
			participantOf(p2),
			now.Add(a.cfg.StartDelay),
			a.cfg.LimitSec,
			a.challenges.Generate(a.cfg.LimitSec),
		)
		a.registry.Register(s)

		evt := model.MatchFoundEvent{
			RoomID:   s.ID,
			StartAt:  s.StartAt.UnixMilli(),
			Text:     s.Challenge.Content,
			LimitSec: s.LimitSec,
			Players: [2]model.PlayerInfo{
				{ID: p1.UserID, Username: p1.Username, Rating: p1.Rating},
				{ID: p2.UserID, Username: p2.Username, Rating: p2.Rating},
			},
		}
		a.send(p1.ConnID, model.EventMatchFound, evt)
		a.send(p2.ConnID, model.EventMatchFound, evt)

		a.logger.Info("match_found",
			slog.String("session", s.ID),
			slog.String("p1", p1.UserID),
			slog.String("p2", p2.UserID),
			slog.Int("rating_gap", abs(p1.Rating-p2.Rating)),
		)
	}
}

// resolveLocked performs the synchronous half of resolution: decide, rate,
// reward, broadcast and unregister. It returns the outcome to persist, or
// nothing when the session is not complete or already resolved.
func (a *ArenaService) resolveLocked(s *MatchSession, now time.Time) []*model.MatchOutcome {
	if !s.TryResolve() {
		return nil
	}

	statsA, _ := s.Stats(SlotA)
	statsB, _ := s.Stats(SlotB)
	decision := ResolveResult(statsA, statsB)

	pa, pb := s.Players[SlotA], s.Players[SlotB]
	newA, newB := EloRatings{K: a.cfg.EloK}.Update(pa.Rating, pb.Rating, decision.Winner)

	outcome := &model.MatchOutcome{
		SessionID: s.ID,
		Players: [2]model.ParticipantOutcome{
			{
				UserID:       pa.UserID,
				Username:     pa.Username,
				Stats:        statsA,
				RatingBefore: pa.Rating,
				RatingAfter:  newA,
				XPGain:       a.cfg.XP.RankedXP(statsA.WPM, statsA.Acc, decision.Winner == SlotA),
			},
			{
				UserID:       pb.UserID,
				Username:     pb.Username,
				Stats:        statsB,
				RatingBefore: pb.Rating,
				RatingAfter:  newB,
				XPGain:       a.cfg.XP.RankedXP(statsB.WPM, statsB.Acc, decision.Winner == SlotB),
			},
		},
		Reason:     decision.Reason,
		ElapsedMS:  max(statsA.Elapsed, statsB.Elapsed),
		ResolvedAt: now,
	}

	evt := model.MatchResultEvent{
		OK:           true,
		RoomID:       s.ID,
		Reason:       decision.Reason,
		P1:           resultPlayer(outcome.Players[SlotA]),
		P2:           resultPlayer(outcome.Players[SlotB]),
		EloDelta:     abs(newA - pa.Rating),
		TotalElapsed: outcome.ElapsedMS,
	}
	if decision.Winner != NoWinner {
		w := outcome.Players[decision.Winner]
		outcome.WinnerUserID = &w.UserID
		evt.WinnerUserID = &w.UserID
		evt.WinnerUsername = &w.Username
	}

	a.ratings[pa.UserID] = newA
	a.ratings[pb.UserID] = newB
	a.unsettled[pa.UserID]++
	a.unsettled[pb.UserID]++
	a.registry.Remove(s.ID)

	a.send(pa.ConnID, model.EventMatchResult, evt)
	a.send(pb.ConnID, model.EventMatchResult, evt)

	a.metrics.MatchResolved(decision.Reason)
	a.logger.Info("match_resolved",
		slog.String("session", s.ID),
		slog.String("reason", decision.Reason),
		slog.String("p1_finished_by", string(statsA.FinishedBy)),
		slog.String("p2_finished_by", string(statsB.FinishedBy)),
		slog.Int("elo_delta", evt.EloDelta),
	)
	return []*model.MatchOutcome{outcome}
}

func (a *ArenaService) commitAsync(outcome *model.MatchOutcome) {
	a.commits.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.CommitTimeout)
		defer cancel()

		err := a.commitOutcome(ctx, outcome)
		if err == nil {
			a.settle(outcome)
			return nil
		}
		a.metrics.CommitFailed()
		a.logger.Error("commit_failed",
			slog.String("session", outcome.SessionID),
			slog.Any("err", err),
		)
		if a.pending == nil {
			a.settle(outcome)
			return nil
		}
		pushCtx, pushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pushCancel()
		if pushErr := a.pending.Push(pushCtx, outcome); pushErr != nil {
			a.logger.Error("pending_outcome_lost",
				slog.String("session", outcome.SessionID),
				slog.Any("err", pushErr),
			)
			a.settle(outcome)
		}
		return nil
	})
}

// settle marks an outcome as no longer pending for its players. A parked
// outcome stays unsettled until a retry commits or drops it.
func (a *ArenaService) settle(outcome *model.MatchOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range outcome.Players {
		if a.unsettled[p.UserID] > 1 {
			a.unsettled[p.UserID]--
		} else {
			delete(a.unsettled, p.UserID)
		}
		a.forgetRatingLocked(p.UserID)
	}
}

func (a *ArenaService) releaseConnLocked(connID string) {
	userID, ok := a.connUser[connID]
	if !ok {
		return
	}
	delete(a.connUser, connID)
	if a.liveConns[userID] > 1 {
		a.liveConns[userID]--
	} else {
		delete(a.liveConns, userID)
	}
	a.forgetRatingLocked(userID)
}

// forgetRatingLocked drops the overlay once the store is authoritative again
// and no connection could still be holding a stale identity.
func (a *ArenaService) forgetRatingLocked(userID string) {
	if a.liveConns[userID] == 0 && a.unsettled[userID] == 0 {
		delete(a.ratings, userID)
	}
}

// commitOutcome persists an outcome and refreshes the read caches. An
// outcome that was already committed counts as success.
func (a *ArenaService) commitOutcome(ctx context.Context, outcome *model.MatchOutcome) error {
	if a.committer == nil {
		return nil
	}
	updates, err := a.committer.CommitMatchOutcome(ctx, outcome)
	if errors.Is(err, repository.ErrOutcomeAlreadyCommitted) {
		a.logger.Debug("outcome_already_committed", slog.String("session", outcome.SessionID))
		return nil
	}
	if err != nil {
		return err
	}

	if a.leaderboard != nil {
		if err := a.leaderboard.UpdateRatings(ctx, updates); err != nil {
			a.logger.Warn("leaderboard_update_failed", slog.Any("err", err))
		}
	}
	if a.users != nil {
		ids := make([]string, len(updates))
		for i, u := range updates {
			ids[i] = u.UserID
		}
		if err := a.users.Invalidate(ctx, ids...); err != nil {
			a.logger.Warn("user_cache_invalidate_failed", slog.Any("err", err))
		}
	}
	for _, u := range updates {
		if u.Level > u.LevelBefore {
			a.logger.Info("level_up",
				slog.String("user", u.UserID),
				slog.Int("level", u.Level),
				slog.Int("coins", u.CoinsEarned),
			)
		}
	}
	return nil
}

func (a *ArenaService) send(connID, msgType string, payload interface{}) {
	if a.broadcaster == nil {
		return
	}
	a.broadcaster.BroadcastToConn(connID, msgType, payload)
}

func participantOf(p model.WaitingPlayer) Participant {
	return Participant{
		ConnID:   p.ConnID,
		UserID:   p.UserID,
		Username: p.Username,
		Rating:   p.Rating,
	}
}

func resultPlayer(p model.ParticipantOutcome) model.ResultPlayer {
	return model.ResultPlayer{
		UserID:        p.UserID,
		Username:      p.Username,
		TerminalStats: p.Stats,
		RatingBefore:  p.RatingBefore,
		RatingAfter:   p.RatingAfter,
		XPGain:        p.XPGain,
	}
}
