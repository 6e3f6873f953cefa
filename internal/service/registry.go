package service

import (
	"fmt"
	"sort"
)

// SessionRegistry maps session ids and connection ids to live sessions.
// It is not safe for concurrent use; the arena serializes access.
type SessionRegistry struct {
	sessions map[string]*MatchSession
	byConn   map[string]string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*MatchSession),
		byConn:   make(map[string]string),
	}
}

// Register binds a session and both of its connections. Binding a
// connection that already belongs to a session is a programming error.
func (r *SessionRegistry) Register(s *MatchSession) {
	if _, exists := r.sessions[s.ID]; exists {
		panic(fmt.Sprintf("session %s registered twice", s.ID))
	}
	for _, p := range s.Players {
		if other, bound := r.byConn[p.ConnID]; bound {
			panic(fmt.Sprintf("connection %s already bound to session %s", p.ConnID, other))
		}
	}
	r.sessions[s.ID] = s
	for _, p := range s.Players {
		r.byConn[p.ConnID] = s.ID
	}
}

// Lookup returns the session a connection is bound to
func (r *SessionRegistry) Lookup(connID string) (*MatchSession, bool) {
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

func (r *SessionRegistry) Get(id string) (*MatchSession, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove unbinds a session and its connections
func (r *SessionRegistry) Remove(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	for _, p := range s.Players {
		if r.byConn[p.ConnID] == id {
			delete(r.byConn, p.ConnID)
		}
	}
	delete(r.sessions, id)
}

func (r *SessionRegistry) Len() int {
	return len(r.sessions)
}

// Sessions returns live sessions ordered by start time
func (r *SessionRegistry) Sessions() []*MatchSession {
	out := make([]*MatchSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.Before(out[j].StartAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
