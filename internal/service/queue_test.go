package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeduel/internal/model"
)

func waiting(conn, user string, rating int) model.WaitingPlayer {
	return model.WaitingPlayer{ConnID: conn, UserID: user, Username: user, Rating: rating}
}

func TestPairPrefersFirstWithinWindow(t *testing.T) {
	q := NewMatchQueue()
	q.Add(waiting("c1", "u1", 200))
	q.Add(waiting("c2", "u2", 205))
	q.Add(waiting("c3", "u3", 400))

	p1, p2, ok := q.Pair()
	require.True(t, ok)
	assert.Equal(t, "c1", p1.ConnID)
	assert.Equal(t, "c2", p2.ConnID)

	_, _, ok = q.Pair()
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Contains("c3"))
}

func TestPairFallsBackToClosestRating(t *testing.T) {
	q := NewMatchQueue()
	q.Add(waiting("c1", "u1", 200))
	q.Add(waiting("c2", "u2", 600))
	q.Add(waiting("c3", "u3", 350))
	q.Add(waiting("c4", "u4", 320))

	p1, p2, ok := q.Pair()
	require.True(t, ok)
	assert.Equal(t, "c1", p1.ConnID)
	assert.Equal(t, "c4", p2.ConnID)

	p1, p2, ok = q.Pair()
	require.True(t, ok)
	assert.Equal(t, "c2", p1.ConnID)
	assert.Equal(t, "c3", p2.ConnID)
	assert.Zero(t, q.Len())
}

func TestPairTakesFirstInWindowNotClosest(t *testing.T) {
	q := NewMatchQueue()
	q.Add(waiting("c1", "u1", 200))
	q.Add(waiting("c2", "u2", 290))
	q.Add(waiting("c3", "u3", 201))

	_, p2, ok := q.Pair()
	require.True(t, ok)
	assert.Equal(t, "c2", p2.ConnID)
}

func TestPairSkipsSameUser(t *testing.T) {
	q := NewMatchQueue()
	q.Add(waiting("c1", "u1", 200))
	q.Add(waiting("c2", "u1", 200))

	_, _, ok := q.Pair()
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len())

	q.Add(waiting("c3", "u2", 900))
	p1, p2, ok := q.Pair()
	require.True(t, ok)
	assert.Equal(t, "c1", p1.ConnID)
	assert.Equal(t, "c3", p2.ConnID)
	assert.True(t, q.Contains("c2"))
}

func TestQueueAddRemove(t *testing.T) {
	q := NewMatchQueue()
	assert.True(t, q.Add(waiting("c1", "u1", 200)))
	assert.False(t, q.Add(waiting("c1", "u1", 200)))
	assert.Equal(t, 1, q.Len())

	assert.True(t, q.Remove("c1"))
	assert.False(t, q.Remove("c1"))
	assert.Zero(t, q.Len())

	_, _, ok := q.Pair()
	assert.False(t, ok)
}
