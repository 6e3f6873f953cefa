package service

import (
	"time"

	"typeduel/internal/model"
)

// SessionState is the lifecycle phase of a MatchSession, derived from the
// clock and the terminal stats recorded so far.
type SessionState int

const (
	StatePaired SessionState = iota
	StateActive
	StateAwaitingPartner
	StateResolved
)

func (s SessionState) String() string {
	switch s {
	case StatePaired:
		return "paired"
	case StateActive:
		return "active"
	case StateAwaitingPartner:
		return "awaiting_partner"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Participant is one of the two players bound to a session
type Participant struct {
	ConnID   string
	UserID   string
	Username string
	Rating   int // rating at start
}

type slotState struct {
	lastActivity time.Time
	progress     *model.LiveProgress
	stats        *model.TerminalStats
}

// MatchSession is the state machine of a single duel. It is not safe for
// concurrent use; the arena serializes access.
type MatchSession struct {
	ID        string
	Players   [2]Participant
	StartAt   time.Time
	LimitSec  int
	Challenge model.Challenge

	slots    [2]slotState
	resolved bool
}

func NewMatchSession(id string, a, b Participant, startAt time.Time, limitSec int, challenge model.Challenge) *MatchSession {
	s := &MatchSession{
		ID:        id,
		Players:   [2]Participant{a, b},
		StartAt:   startAt,
		LimitSec:  limitSec,
		Challenge: challenge,
	}
	s.slots[SlotA].lastActivity = startAt
	s.slots[SlotB].lastActivity = startAt
	return s
}

func (s *MatchSession) State(now time.Time) SessionState {
	switch {
	case s.resolved:
		return StateResolved
	case now.Before(s.StartAt):
		return StatePaired
	case s.slots[SlotA].stats != nil || s.slots[SlotB].stats != nil:
		return StateAwaitingPartner
	default:
		return StateActive
	}
}

// SlotOf returns the slot bound to connID
func (s *MatchSession) SlotOf(connID string) (Slot, bool) {
	switch connID {
	case s.Players[SlotA].ConnID:
		return SlotA, true
	case s.Players[SlotB].ConnID:
		return SlotB, true
	}
	return NoWinner, false
}

// Deadline is the moment the time limit expires
func (s *MatchSession) Deadline() time.Time {
	return s.StartAt.Add(time.Duration(s.LimitSec) * time.Second)
}

func (s *MatchSession) Resolved() bool { return s.resolved }

// Stats returns a copy of the terminal stats of slot, if any
func (s *MatchSession) Stats(slot Slot) (model.TerminalStats, bool) {
	if st := s.slots[slot].stats; st != nil {
		return *st, true
	}
	return model.TerminalStats{}, false
}

// Progress returns the last live snapshot of slot, if any
func (s *MatchSession) Progress(slot Slot) (model.LiveProgress, bool) {
	if p := s.slots[slot].progress; p != nil {
		return *p, true
	}
	return model.LiveProgress{}, false
}

// ApplyProgress records a live snapshot. It is accepted only while the
// contest is running and the slot has not reached a terminal state.
func (s *MatchSession) ApplyProgress(slot Slot, p model.LiveProgress, now time.Time) bool {
	if st := s.State(now); st != StateActive && st != StateAwaitingPartner {
		return false
	}
	sl := &s.slots[slot]
	if sl.stats != nil {
		return false
	}
	sl.lastActivity = now
	sl.progress = &p
	return true
}

// ApplyFinish stores the participant's final stats. Stats are written once.
func (s *MatchSession) ApplyFinish(slot Slot, stats model.TerminalStats, now time.Time) bool {
	sl := &s.slots[slot]
	if s.resolved || sl.stats != nil {
		return false
	}
	clean := stats.Sanitized()
	sl.stats = &clean
	sl.lastActivity = now
	return true
}

// ForfeitInactive forfeits every started slot that has been silent for at
// least threshold. When both are silent both forfeit.
func (s *MatchSession) ForfeitInactive(now time.Time, threshold time.Duration) bool {
	if s.resolved || now.Before(s.StartAt) {
		return false
	}
	var idle [2]bool
	for _, slot := range []Slot{SlotA, SlotB} {
		sl := s.slots[slot]
		idle[slot] = sl.stats == nil && now.Sub(sl.lastActivity) >= threshold
	}
	switch {
	case idle[SlotA] && idle[SlotB]:
		s.setStats(SlotA, forfeitStats(s.StartAt, now, model.ForfeitInactive))
		s.setStats(SlotB, forfeitStats(s.StartAt, now, model.ForfeitInactive))
	case idle[SlotA]:
		s.forfeit(SlotA, now, model.ForfeitInactive)
	case idle[SlotB]:
		s.forfeit(SlotB, now, model.ForfeitInactive)
	default:
		return false
	}
	return true
}

// ForfeitDisconnect forfeits slot after its connection dropped
func (s *MatchSession) ForfeitDisconnect(slot Slot, now time.Time) bool {
	if s.resolved || s.slots[slot].stats != nil {
		return false
	}
	s.forfeit(slot, now, model.ForfeitDisconnect)
	return true
}

// EnforceDeadline closes every open slot once the limit plus grace has passed,
// deriving stats from the last progress seen.
func (s *MatchSession) EnforceDeadline(now time.Time, grace time.Duration) bool {
	if s.resolved || now.Before(s.Deadline().Add(grace)) {
		return false
	}
	changed := false
	for _, slot := range []Slot{SlotA, SlotB} {
		if s.slots[slot].stats == nil {
			s.setStats(slot, StatsFromProgress(s.slots[slot].progress, s.StartAt, now, model.TimeLimit))
			changed = true
		}
	}
	return changed
}

// Complete reports whether both slots hold terminal stats
func (s *MatchSession) Complete() bool {
	return s.slots[SlotA].stats != nil && s.slots[SlotB].stats != nil
}

// TryResolve flips the session to resolved. It returns true exactly once,
// and only when both slots are complete.
func (s *MatchSession) TryResolve() bool {
	if s.resolved || !s.Complete() {
		return false
	}
	s.resolved = true
	return true
}

func (s *MatchSession) forfeit(slot Slot, now time.Time, reason model.CompletionReason) {
	s.setStats(slot, forfeitStats(s.StartAt, now, reason))
	partner := slot.Other()
	if s.slots[partner].stats == nil {
		s.setStats(partner, StatsFromProgress(s.slots[partner].progress, s.StartAt, now, model.WinByForfeit))
	}
}

func (s *MatchSession) setStats(slot Slot, stats model.TerminalStats) {
	s.slots[slot].stats = &stats
}
