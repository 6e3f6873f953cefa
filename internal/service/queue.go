package service

import "typeduel/internal/model"

// ratingWindow is the preferred maximum rating gap between paired players
const ratingWindow = 100

// MatchQueue is the FIFO of players waiting for an opponent.
// It is not safe for concurrent use; the arena serializes access.
type MatchQueue struct {
	waiting []model.WaitingPlayer
}

func NewMatchQueue() *MatchQueue {
	return &MatchQueue{}
}

// Add enqueues p unless its connection is already waiting
func (q *MatchQueue) Add(p model.WaitingPlayer) bool {
	if q.Contains(p.ConnID) {
		return false
	}
	q.waiting = append(q.waiting, p)
	return true
}

// Remove drops the entry of connID, reporting whether it was queued
func (q *MatchQueue) Remove(connID string) bool {
	for i, p := range q.waiting {
		if p.ConnID == connID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	return false
}

func (q *MatchQueue) Contains(connID string) bool {
	for _, p := range q.waiting {
		if p.ConnID == connID {
			return true
		}
	}
	return false
}

func (q *MatchQueue) Len() int {
	return len(q.waiting)
}

// Pair takes the head of the queue and finds its opponent: the first entry
// within the rating window, otherwise the entry with the smallest gap.
// Entries of the same user are never paired together. When no opponent
// exists the head stays in place and ok is false.
func (q *MatchQueue) Pair() (p1, p2 model.WaitingPlayer, ok bool) {
	if len(q.waiting) < 2 {
		return p1, p2, false
	}
	p1 = q.waiting[0]
	rest := q.waiting[1:]

	idx := -1
	for i, c := range rest {
		if c.UserID == p1.UserID {
			continue
		}
		if abs(c.Rating-p1.Rating) <= ratingWindow {
			idx = i
			break
		}
	}
	if idx < 0 {
		bestDiff := -1
		for i, c := range rest {
			if c.UserID == p1.UserID {
				continue
			}
			if d := abs(c.Rating - p1.Rating); bestDiff < 0 || d < bestDiff {
				bestDiff = d
				idx = i
			}
		}
	}
	if idx < 0 {
		return p1, p2, false
	}

	p2 = rest[idx]
	remaining := make([]model.WaitingPlayer, 0, len(rest)-1)
	remaining = append(remaining, rest[:idx]...)
	remaining = append(remaining, rest[idx+1:]...)
	q.waiting = remaining
	return p1, p2, true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
