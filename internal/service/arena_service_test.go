package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeduel/internal/cache"
	"typeduel/internal/model"
	"typeduel/internal/repository"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func resultFor(t *testing.T, bc *recordingBroadcaster, connID string) model.MatchResultEvent {
	t.Helper()
	results := bc.ofType(connID, model.EventMatchResult)
	require.Len(t, results, 1, "expected exactly one result for %s", connID)
	return results[0].Payload.(model.MatchResultEvent)
}

func TestArenaEndToEnd(t *testing.T) {
	f := newArenaFixture(t)

	f.arena.JoinQueue("c1", identity("u1", 200))
	assert.Empty(t, f.bc.eventsFor("c1"), "waiting alone emits nothing")
	f.arena.JoinQueue("c2", identity("u2", 200))

	found1 := f.bc.ofType("c1", model.EventMatchFound)
	found2 := f.bc.ofType("c2", model.EventMatchFound)
	require.Len(t, found1, 1)
	require.Len(t, found2, 1)
	evt := found1[0].Payload.(model.MatchFoundEvent)
	assert.Equal(t, evt, found2[0].Payload.(model.MatchFoundEvent))
	assert.Equal(t, testEpoch.Add(2*time.Second).UnixMilli(), evt.StartAt)
	assert.Equal(t, 20, evt.LimitSec)
	assert.NotEmpty(t, evt.Text)
	assert.Equal(t, "u1", evt.Players[0].ID)
	assert.Equal(t, "u2", evt.Players[1].ID)
	assert.Equal(t, 0, f.arena.QueueDepth())
	assert.Equal(t, 1, f.arena.ActiveSessions())

	f.clock.Advance(3 * time.Second)
	f.arena.Progress("c1", model.ProgressMessage{RoomID: evt.RoomID, LiveProgress: model.LiveProgress{Pos: 40, Errors: 1, T: 1000}})
	relayed := f.bc.ofType("c2", model.EventOpponentProgress)
	require.Len(t, relayed, 1)
	assert.Equal(t, 40, relayed[0].Payload.(model.OpponentProgressEvent).Pos)
	assert.Empty(t, f.bc.ofType("c1", model.EventOpponentProgress))

	f.arena.Finish("c1", model.FinishMessage{RoomID: evt.RoomID, Stats: model.TerminalStats{
		WPM: 70, Acc: 0.97, Typed: 120, Correct: 116, Errors: 4, Elapsed: 15000, FinishedBy: model.FinishedText,
	}})
	assert.Empty(t, f.bc.ofType("c1", model.EventMatchResult), "no result until both are done")

	f.arena.Finish("c2", model.FinishMessage{RoomID: evt.RoomID, Stats: model.TerminalStats{
		WPM: 55, Acc: 0.99, Elapsed: 20000, FinishedBy: model.TimeLimit,
	}})

	res := resultFor(t, f.bc, "c1")
	assert.Equal(t, res, resultFor(t, f.bc, "c2"))
	assert.True(t, res.OK)
	assert.Equal(t, evt.RoomID, res.RoomID)
	assert.Equal(t, ReasonFinishedFirst, res.Reason)
	require.NotNil(t, res.WinnerUserID)
	assert.Equal(t, "u1", *res.WinnerUserID)
	assert.Equal(t, "user-u1", *res.WinnerUsername)
	assert.Equal(t, 212, res.P1.RatingAfter)
	assert.Equal(t, 188, res.P2.RatingAfter)
	assert.Equal(t, 12, res.EloDelta)
	assert.Equal(t, int64(20000), res.TotalElapsed)
	assert.Equal(t, 60+14+9, res.P1.XPGain)
	assert.Zero(t, f.arena.ActiveSessions())

	f.arena.Wait()
	committed := f.committer.committed()
	require.Len(t, committed, 1)
	assert.Equal(t, evt.RoomID, committed[0].SessionID)
	assert.Equal(t, 212, committed[0].Players[0].RatingAfter)
	assert.Equal(t, "u1", *committed[0].WinnerUserID)
}

func TestArenaUnauthenticatedJoin(t *testing.T) {
	f := newArenaFixture(t)
	f.arena.JoinQueue("c1", nil)

	errs := f.bc.ofType("c1", model.EventQueueError)
	require.Len(t, errs, 1)
	assert.Equal(t, model.QueueErrorEvent{Error: "not_authenticated"}, errs[0].Payload)
	assert.Zero(t, f.arena.QueueDepth())
}

func TestArenaQueuedDisconnectIsSilent(t *testing.T) {
	f := newArenaFixture(t)
	f.arena.JoinQueue("c1", identity("u1", 200))
	f.arena.Disconnect("c1")

	assert.Zero(t, f.arena.QueueDepth())
	assert.Zero(t, f.bc.count())

	f.arena.JoinQueue("c2", identity("u2", 200))
	assert.Empty(t, f.bc.ofType("c2", model.EventMatchFound))
}

func TestArenaRepeatedJoinIsNoop(t *testing.T) {
	f := newArenaFixture(t)
	f.arena.JoinQueue("c1", identity("u1", 200))
	f.arena.JoinQueue("c1", identity("u1", 200))
	assert.Equal(t, 1, f.arena.QueueDepth())

	f.startMatch(t)
	f.arena.JoinQueue("c1", identity("u1", 200))
	assert.Zero(t, f.arena.QueueDepth(), "a playing connection cannot queue")
	assert.Len(t, f.bc.ofType("c1", model.EventMatchFound), 1)
}

func TestArenaSameUserTabsAreNotPaired(t *testing.T) {
	f := newArenaFixture(t)
	f.arena.JoinQueue("tab1", identity("u1", 200))
	f.arena.JoinQueue("tab2", identity("u1", 200))

	assert.Equal(t, 2, f.arena.QueueDepth())
	assert.Zero(t, f.arena.ActiveSessions())
}

func TestArenaDropsMessagesForOtherRooms(t *testing.T) {
	f := newArenaFixture(t)
	room := f.startMatch(t)

	f.arena.Progress("c1", model.ProgressMessage{RoomID: "not-" + room, LiveProgress: model.LiveProgress{Pos: 5}})
	f.arena.Finish("c1", model.FinishMessage{RoomID: "not-" + room, Stats: model.TerminalStats{FinishedBy: model.FinishedText}})
	f.arena.Progress("stranger", model.ProgressMessage{RoomID: room})

	assert.Empty(t, f.bc.ofType("c2", model.EventOpponentProgress))
	assert.Equal(t, 1, f.arena.ActiveSessions())
}

func TestArenaInactivitySweep(t *testing.T) {
	f := newArenaFixture(t)
	room := f.startMatch(t)

	f.clock.Advance(5 * time.Second)
	f.arena.Progress("c2", model.ProgressMessage{RoomID: room, LiveProgress: model.LiveProgress{Pos: 50, Errors: 5, T: 10000}})

	f.clock.Advance(9 * time.Second)
	f.arena.Sweep()
	assert.Empty(t, f.bc.ofType("c1", model.EventMatchResult), "14s of silence is tolerated")

	f.clock.Advance(time.Second)
	f.arena.Sweep()

	res := resultFor(t, f.bc, "c2")
	assert.Equal(t, ReasonForfeit, res.Reason)
	require.NotNil(t, res.WinnerUserID)
	assert.Equal(t, "u2", *res.WinnerUserID)
	assert.Equal(t, model.ForfeitInactive, res.P1.FinishedBy)
	assert.Equal(t, model.WinByForfeit, res.P2.FinishedBy)
	assert.Equal(t, 60, res.P2.WPM)
	assert.InDelta(t, 0.909, res.P2.Acc, 0.001)
	assert.Zero(t, f.arena.ActiveSessions())
}

func TestArenaDisconnectDuringMatch(t *testing.T) {
	f := newArenaFixture(t)
	f.startMatch(t)
	f.clock.Advance(4 * time.Second)

	f.arena.Disconnect("c1")

	res := resultFor(t, f.bc, "c2")
	assert.Equal(t, ReasonForfeit, res.Reason)
	assert.Equal(t, "u2", *res.WinnerUserID)
	assert.Equal(t, model.ForfeitDisconnect, res.P1.FinishedBy)
	assert.Equal(t, 1.0, res.P2.Acc)

	f.arena.Disconnect("c2")
	assert.Len(t, f.bc.ofType("c2", model.EventMatchResult), 1)
}

func TestArenaDisconnectBeforeStart(t *testing.T) {
	f := newArenaFixture(t)
	f.arena.JoinQueue("c1", identity("u1", 200))
	f.arena.JoinQueue("c2", identity("u2", 200))

	f.arena.Disconnect("c2")
	res := resultFor(t, f.bc, "c1")
	assert.Equal(t, "u1", *res.WinnerUserID)
	assert.Zero(t, res.P2.Elapsed)
}

func TestArenaDeadlineClosesStalledSession(t *testing.T) {
	f := newArenaFixture(t, func(c *ArenaConfig) { c.InactivityTimeout = time.Hour })
	room := f.startMatch(t)

	f.clock.Advance(10 * time.Second)
	f.arena.Progress("c1", model.ProgressMessage{RoomID: room, LiveProgress: model.LiveProgress{Pos: 80, Errors: 0, T: 10000}})
	f.arena.Progress("c2", model.ProgressMessage{RoomID: room, LiveProgress: model.LiveProgress{Pos: 80, Errors: 8, T: 10000}})

	f.clock.Advance(14 * time.Second)
	f.arena.Sweep()
	assert.Empty(t, f.bc.ofType("c1", model.EventMatchResult))

	f.clock.Advance(time.Second)
	f.arena.Sweep()
	res := resultFor(t, f.bc, "c1")
	assert.Equal(t, ReasonAccuracy, res.Reason)
	assert.Equal(t, "u1", *res.WinnerUserID)
	assert.Equal(t, model.TimeLimit, res.P1.FinishedBy)
	assert.Equal(t, model.TimeLimit, res.P2.FinishedBy)
}

func TestArenaResolvesExactlyOnceUnderContention(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newArenaFixture(t)
		room := f.startMatch(t)
		f.clock.Advance(16 * time.Second)

		finish := model.FinishMessage{RoomID: room, Stats: model.TerminalStats{FinishedBy: model.FinishedText, Elapsed: 9000}}
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(4)
			go func() { defer wg.Done(); f.arena.Finish("c1", finish) }()
			go func() { defer wg.Done(); f.arena.Finish("c2", finish) }()
			go func() { defer wg.Done(); f.arena.Sweep() }()
			go func() { defer wg.Done(); f.arena.Disconnect("c2") }()
		}
		wg.Wait()
		f.arena.Wait()

		assert.Len(t, f.bc.ofType("c1", model.EventMatchResult), 1, "round %d", round)
		assert.Len(t, f.bc.ofType("c2", model.EventMatchResult), 1, "round %d", round)
		assert.Len(t, f.committer.committed(), 1, "round %d", round)
		assert.Zero(t, f.arena.ActiveSessions())
	}
}

func TestArenaCommitFailureIsParkedAndRetried(t *testing.T) {
	f := newArenaFixture(t)
	pending := cache.NewPendingOutcomeQueue(newRedis(t))
	f.arena.SetPendingQueue(pending)
	f.committer.setErr(errors.New("database unavailable"))

	f.startMatch(t)
	f.arena.Disconnect("c1")
	f.arena.Wait()

	assert.Equal(t, model.ForfeitDisconnect, resultFor(t, f.bc, "c2").P1.FinishedBy)
	n, err := pending.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	committed, err := f.arena.RetryPending(context.Background())
	require.Error(t, err, "still failing")
	assert.Zero(t, committed)
	n, _ = pending.Len(context.Background())
	assert.Equal(t, int64(1), n, "failed retry goes back in the queue")

	f.committer.setErr(nil)
	committed, err = f.arena.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, committed)
	n, _ = pending.Len(context.Background())
	assert.Zero(t, n)
	assert.Len(t, f.committer.committed(), 3)
}

func TestArenaAlreadyCommittedIsNotRetried(t *testing.T) {
	f := newArenaFixture(t)
	pending := cache.NewPendingOutcomeQueue(newRedis(t))
	f.arena.SetPendingQueue(pending)
	f.committer.setErr(fmt.Errorf("commit outcome s1: %w", repository.ErrOutcomeAlreadyCommitted))

	f.startMatch(t)
	f.arena.Disconnect("c2")
	f.arena.Wait()

	n, err := pending.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArenaRetryDropsPoisonOutcomes(t *testing.T) {
	f := newArenaFixture(t)
	pending := cache.NewPendingOutcomeQueue(newRedis(t))
	f.arena.SetPendingQueue(pending)
	require.NoError(t, pending.Push(context.Background(), &model.MatchOutcome{SessionID: "gone"}))
	f.committer.setErr(fmt.Errorf("commit outcome gone: %w", repository.ErrUserNotFound))

	committed, err := f.arena.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, committed)
	n, _ := pending.Len(context.Background())
	assert.Zero(t, n)
}

func TestArenaUpdatesLeaderboardAfterCommit(t *testing.T) {
	f := newArenaFixture(t)
	lb := cache.NewLeaderboardCache(newRedis(t))
	f.arena.SetLeaderboard(lb)

	f.startMatch(t)
	f.arena.Disconnect("c1")
	f.arena.Wait()

	top, err := lb.GetTop(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, 212, top[0].Rating)
	assert.Equal(t, "user-u2", top[0].Username)
}

func TestArenaUsesResolvedRatingOnRequeue(t *testing.T) {
	f := newArenaFixture(t)
	f.startMatch(t)
	f.arena.Disconnect("c1")

	// c2 still carries the identity it authenticated with before the match
	f.arena.JoinQueue("c2", identity("u2", 200))
	f.arena.JoinQueue("c4", identity("u1", 188))

	found := f.bc.ofType("c2", model.EventMatchFound)
	require.Len(t, found, 2)
	players := found[1].Payload.(model.MatchFoundEvent).Players
	assert.Equal(t, 212, players[0].Rating)
	assert.Equal(t, 188, players[1].Rating)
}

func TestArenaForgetsRatingOnceCommittedAndOffline(t *testing.T) {
	f := newArenaFixture(t)
	f.startMatch(t)
	f.arena.Disconnect("c1")
	f.arena.Wait()

	assert.Equal(t, map[string]int{"u2": 212}, ratingOverlay(f.arena), "u2 is still connected")

	f.arena.Disconnect("c2")
	assert.Empty(t, ratingOverlay(f.arena))
}

func TestArenaKeepsRatingWhileOutcomeIsParked(t *testing.T) {
	f := newArenaFixture(t)
	pending := cache.NewPendingOutcomeQueue(newRedis(t))
	f.arena.SetPendingQueue(pending)
	f.committer.setErr(errors.New("database unavailable"))

	f.startMatch(t)
	f.arena.Disconnect("c1")
	f.arena.Disconnect("c2")
	f.arena.Wait()
	assert.Equal(t, map[string]int{"u1": 188, "u2": 212}, ratingOverlay(f.arena))

	f.arena.JoinQueue("c3", identity("u1", 200))
	f.arena.JoinQueue("c4", identity("u2", 200))
	found := f.bc.ofType("c3", model.EventMatchFound)
	require.Len(t, found, 1)
	players := found[0].Payload.(model.MatchFoundEvent).Players
	assert.Equal(t, 188, players[0].Rating)
	assert.Equal(t, 212, players[1].Rating)
	f.arena.Disconnect("c3")
	f.arena.Disconnect("c4")
	f.arena.Wait()

	f.committer.setErr(nil)
	committed, err := f.arena.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, committed)
	assert.Empty(t, ratingOverlay(f.arena))
}

func TestArenaCommitsToGormStore(t *testing.T) {
	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	store := repository.NewGormStore(db)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.AutoMigrate(ctx))
	require.NoError(t, store.CreateUser(ctx, &model.User{ID: "u1", Username: "alice", XP: 95}))
	require.NoError(t, store.CreateUser(ctx, &model.User{ID: "u2", Username: "bob"}))

	f := newArenaFixture(t)
	f.arena.committer = store
	room := f.startMatch(t)

	f.arena.Finish("c1", model.FinishMessage{RoomID: room, Stats: model.TerminalStats{WPM: 60, Acc: 0.95, Elapsed: 14000, FinishedBy: model.FinishedText}})
	f.arena.Finish("c2", model.FinishMessage{RoomID: room, Stats: model.TerminalStats{WPM: 40, Acc: 0.9, Elapsed: 20000, FinishedBy: model.TimeLimit}})
	f.arena.Wait()

	rec, err := store.GetMatch(ctx, room)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ReasonFinishedFirst, rec.Reason)

	alice, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 212, alice.Rating)
	assert.Equal(t, 95+81, alice.XP)
	assert.Equal(t, 1, alice.CoinBalance)

	bob, err := store.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 188, bob.Rating)
}
