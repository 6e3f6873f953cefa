package model

import (
	"strings"
	"time"
)

// DefaultRating is assigned to users who have never played a ranked match
const DefaultRating = 200

// WaitingPlayer is a queued connection waiting for an opponent
type WaitingPlayer struct {
	ConnID   string    `json:"connId"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Rating   int       `json:"rating"`
	JoinedAt time.Time `json:"joinedAt"`
}

// PlayerInfo is the public view of a participant sent with matchFound
type PlayerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// DisplayName picks the name shown to opponents: the username, then the
// local part of the email, then a generic fallback.
func DisplayName(username, email string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "Player"
}
