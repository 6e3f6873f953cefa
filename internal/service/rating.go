package service

import "math"

// DefaultEloK is the K-factor used for ranked duels
const DefaultEloK = 24

// Slot identifies a participant position inside a session
type Slot int

const (
	NoWinner Slot = -1
	SlotA    Slot = 0
	SlotB    Slot = 1
)

// Other returns the opposing slot
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

// ExpectedScore is the Elo expectation of a against b
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// EloRatings updates a pair of ratings after a match
type EloRatings struct {
	K float64
}

// Update returns the new ratings of a and b. The delta is rounded rather than
// the final rating, so the two changes always cancel out.
func (e EloRatings) Update(ra, rb int, winner Slot) (int, int) {
	sa := 0.5
	switch winner {
	case SlotA:
		sa = 1
	case SlotB:
		sa = 0
	}
	delta := int(math.Round(e.K * (sa - ExpectedScore(ra, rb))))
	return ra + delta, rb - delta
}
