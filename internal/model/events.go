package model

// Inbound message types
const (
	MsgQueueJoin     = "queue:join"
	MsgMatchProgress = "match:progress"
	MsgMatchFinish   = "match:finish"
)

// Outbound message types
const (
	EventQueueError       = "queue:error"
	EventMatchFound       = "matchFound"
	EventOpponentProgress = "opponent:progress"
	EventMatchResult      = "match:result"
)

// Queue error codes
const (
	ErrCodeNotAuthenticated = "not_authenticated"
)

// ProgressMessage is the payload of match:progress
type ProgressMessage struct {
	RoomID string `json:"roomId"`
	LiveProgress
}

// FinishMessage is the payload of match:finish
type FinishMessage struct {
	RoomID string        `json:"roomId"`
	Stats  TerminalStats `json:"stats"`
}

type QueueErrorEvent struct {
	Error string `json:"error"`
}

type MatchFoundEvent struct {
	RoomID   string        `json:"roomId"`
	StartAt  int64         `json:"startAt"` // unix millis
	Text     string        `json:"text"`
	LimitSec int           `json:"limitSec"`
	Players  [2]PlayerInfo `json:"players"`
}

type OpponentProgressEvent struct {
	RoomID string `json:"roomId"`
	LiveProgress
}

// ResultPlayer is one side of the match:result payload
type ResultPlayer struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	TerminalStats
	RatingBefore int `json:"ratingBefore"`
	RatingAfter  int `json:"ratingAfter"`
	XPGain       int `json:"xpGain"`
}

type MatchResultEvent struct {
	OK             bool         `json:"ok"`
	RoomID         string       `json:"roomId"`
	Reason         string       `json:"reason"`
	WinnerUserID   *string      `json:"winnerUserId"`
	WinnerUsername *string      `json:"winnerUsername"`
	P1             ResultPlayer `json:"p1"`
	P2             ResultPlayer `json:"p2"`
	EloDelta       int          `json:"eloDelta"` // absolute rating change
	TotalElapsed   int64        `json:"totalElapsed"`
}
