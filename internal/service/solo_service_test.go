package service

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeduel/internal/cache"
	"typeduel/internal/logging"
	"typeduel/internal/metrics"
	"typeduel/internal/model"
	"typeduel/internal/progression"
	"typeduel/internal/repository"
)

func newSoloFixture(t *testing.T) (*SoloService, *repository.GormStore, *AuthService) {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	store := repository.NewGormStore(db)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.AutoMigrate(ctx))
	require.NoError(t, store.CreateUser(ctx, &model.User{ID: "u1", Username: "alice", XP: 90}))

	userCache := cache.NewUserCache(newRedis(t), time.Minute)
	auth := NewAuthService(testSecret, "", store)
	auth.SetUserCache(userCache)

	solo := NewSoloService(store, progression.DefaultXPPolicy, clockwork.NewFakeClockAt(testEpoch), logging.Discard())
	solo.SetUserCache(userCache)
	solo.SetMetrics(metrics.New())
	return solo, store, auth
}

func TestSoloFinishAwardsXPAndCoins(t *testing.T) {
	solo, store, auth := newSoloFixture(t)
	ctx := context.Background()

	before, err := auth.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 90, before.XP)

	res, err := solo.Finish(ctx, "u1", model.TerminalStats{WPM: 64, Acc: 0.95, Typed: 210, Correct: 200, Errors: 10, Elapsed: 65000})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 26, res.XPGained)
	assert.Equal(t, 116, res.XPTotal)
	assert.Equal(t, 1, res.LevelBefore)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, 1, res.CoinsEarned)
	assert.Equal(t, 1, res.CoinBalance)

	after, err := auth.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 116, after.XP, "the cached profile is invalidated")
	assert.Equal(t, model.DefaultRating, after.Rating)

	ledger, err := store.LedgerFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.True(t, testEpoch.Equal(ledger[0].CreatedAt))
}

func TestSoloFinishSanitizesStats(t *testing.T) {
	solo, _, _ := newSoloFixture(t)

	res, err := solo.Finish(context.Background(), "u1", model.TerminalStats{WPM: -40, Acc: 3, Elapsed: -1})
	require.NoError(t, err)
	assert.Equal(t, 12+5, res.XPGained)
}

func TestSoloFinishUnknownUser(t *testing.T) {
	solo, _, _ := newSoloFixture(t)

	_, err := solo.Finish(context.Background(), "ghost", model.TerminalStats{WPM: 50, Acc: 1})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
