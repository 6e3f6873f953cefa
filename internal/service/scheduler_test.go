package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeduel/internal/cache"
	"typeduel/internal/logging"
	"typeduel/internal/model"
)

func TestSchedulerSweepsIdleSessions(t *testing.T) {
	f := newArenaFixture(t)
	f.startMatch(t)
	f.clock.Advance(20 * time.Second)

	sched, err := NewScheduler(nil, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, sched.StartInactivityMonitor(f.arena, 20*time.Millisecond))
	sched.Start()
	t.Cleanup(func() { _ = sched.Shutdown() })

	assert.Eventually(t, func() bool {
		return len(f.bc.ofType("c1", model.EventMatchResult)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.arena.ActiveSessions())

	res := resultFor(t, f.bc, "c1")
	assert.Equal(t, ReasonDoubleForfeit, res.Reason)
	assert.Nil(t, res.WinnerUserID)
}

func TestSchedulerRetriesParkedOutcomes(t *testing.T) {
	f := newArenaFixture(t)
	pending := cache.NewPendingOutcomeQueue(newRedis(t))
	f.arena.SetPendingQueue(pending)
	f.committer.setErr(errors.New("database unavailable"))

	f.startMatch(t)
	f.arena.Disconnect("c1")
	f.arena.Wait()
	f.committer.setErr(nil)

	sched, err := NewScheduler(nil, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, sched.StartOutcomeRetry(f.arena, 20*time.Millisecond, time.Second))
	sched.Start()
	t.Cleanup(func() { _ = sched.Shutdown() })

	assert.Eventually(t, func() bool {
		return len(f.committer.committed()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	n, err := pending.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
