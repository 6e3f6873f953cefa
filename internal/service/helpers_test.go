package service

import (
	"context"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"typeduel/internal/logging"
	"typeduel/internal/model"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sentEvent struct {
	ConnID  string
	Type    string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *recordingBroadcaster) BroadcastToConn(connID string, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{ConnID: connID, Type: msgType, Payload: payload})
}

func (b *recordingBroadcaster) eventsFor(connID string) []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentEvent
	for _, e := range b.events {
		if e.ConnID == connID {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBroadcaster) ofType(connID, msgType string) []sentEvent {
	var out []sentEvent
	for _, e := range b.eventsFor(connID) {
		if e.Type == msgType {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type fakeCommitter struct {
	mu      sync.Mutex
	calls   []*model.MatchOutcome
	failErr error
}

func (c *fakeCommitter) CommitMatchOutcome(_ context.Context, o *model.MatchOutcome) ([]model.ProgressUpdate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, o)
	if c.failErr != nil {
		return nil, c.failErr
	}
	updates := make([]model.ProgressUpdate, 0, 2)
	for _, p := range o.Players {
		updates = append(updates, model.ProgressUpdate{
			UserID:      p.UserID,
			Username:    p.Username,
			Rating:      p.RatingAfter,
			RatingDelta: p.RatingAfter - p.RatingBefore,
			XPGain:      p.XPGain,
		})
	}
	return updates, nil
}

func (c *fakeCommitter) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failErr = err
}

func (c *fakeCommitter) committed() []*model.MatchOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.MatchOutcome(nil), c.calls...)
}

type fixedChallenges struct{}

func (fixedChallenges) Generate(limitSec int) model.Challenge {
	return NewWordChallengeGenerator().FromSeed(7, WordCountForLimit(limitSec))
}

type arenaFixture struct {
	arena     *ArenaService
	clock     *clockwork.FakeClock
	bc        *recordingBroadcaster
	committer *fakeCommitter
}

func newArenaFixture(t *testing.T, mutate ...func(*ArenaConfig)) *arenaFixture {
	t.Helper()
	cfg := DefaultArenaConfig()
	cfg.CommitWorkers = 2
	for _, m := range mutate {
		m(&cfg)
	}
	clock := clockwork.NewFakeClockAt(testEpoch)
	committer := &fakeCommitter{}
	arena := NewArenaService(cfg, clock, committer, fixedChallenges{}, logging.Discard())
	bc := &recordingBroadcaster{}
	arena.SetBroadcaster(bc)
	t.Cleanup(arena.Wait)
	return &arenaFixture{arena: arena, clock: clock, bc: bc, committer: committer}
}

func identity(id string, rating int) *model.Identity {
	return &model.Identity{UserID: id, Username: "user-" + id, Rating: rating}
}

// startMatch pairs c1/u1 with c2/u2 and moves the clock past the start signal
func (f *arenaFixture) startMatch(t *testing.T) string {
	t.Helper()
	f.arena.JoinQueue("c1", identity("u1", 200))
	f.arena.JoinQueue("c2", identity("u2", 200))
	found := f.bc.ofType("c1", model.EventMatchFound)
	if len(found) != 1 {
		t.Fatalf("expected one matchFound for c1, got %d", len(found))
	}
	f.clock.Advance(f.arena.cfg.StartDelay)
	return found[0].Payload.(model.MatchFoundEvent).RoomID
}

func ratingOverlay(a *ArenaService) map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.ratings)
}
