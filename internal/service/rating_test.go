package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(200, 200), 1e-9)
	assert.InDelta(t, 0.7597, ExpectedScore(1600, 1400), 1e-4)
	assert.InDelta(t, 1.0, ExpectedScore(1600, 1400)+ExpectedScore(1400, 1600), 1e-9)
}

func TestEloUpdate(t *testing.T) {
	elo := EloRatings{K: DefaultEloK}

	a, b := elo.Update(200, 200, SlotA)
	assert.Equal(t, 212, a)
	assert.Equal(t, 188, b)

	a, b = elo.Update(200, 200, NoWinner)
	assert.Equal(t, 200, a)
	assert.Equal(t, 200, b)

	a, b = elo.Update(1600, 1400, SlotA)
	assert.Equal(t, 1606, a)
	assert.Equal(t, 1394, b)

	a, b = elo.Update(1600, 1400, SlotB)
	assert.Equal(t, 1582, a)
	assert.Equal(t, 1418, b)
}

func TestEloIsZeroSum(t *testing.T) {
	elo := EloRatings{K: DefaultEloK}
	for ra := 0; ra <= 2400; ra += 137 {
		for rb := 0; rb <= 2400; rb += 211 {
			for _, w := range []Slot{SlotA, SlotB, NoWinner} {
				na, nb := elo.Update(ra, rb, w)
				assert.Equal(t, ra+rb, na+nb, "ra=%d rb=%d winner=%d", ra, rb, w)
			}
		}
	}
}

func TestSlotOther(t *testing.T) {
	assert.Equal(t, SlotB, SlotA.Other())
	assert.Equal(t, SlotA, SlotB.Other())
}
