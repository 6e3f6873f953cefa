package model

import "time"

// ParticipantOutcome is one side of a resolved session, ready to be committed
type ParticipantOutcome struct {
	UserID       string        `json:"userId"`
	Username     string        `json:"username"`
	Stats        TerminalStats `json:"stats"`
	RatingBefore int           `json:"ratingBefore"`
	RatingAfter  int           `json:"ratingAfter"`
	XPGain       int           `json:"xpGain"`
}

// MatchOutcome is the result of a session, produced exactly once per session
type MatchOutcome struct {
	SessionID    string                `json:"sessionId"`
	Players      [2]ParticipantOutcome `json:"players"`
	WinnerUserID *string               `json:"winnerUserId,omitempty"`
	Reason       string                `json:"reason"`
	ElapsedMS    int64                 `json:"elapsedMs"`
	ResolvedAt   time.Time             `json:"resolvedAt"`
}

// ProgressUpdate describes how a commit changed one user
type ProgressUpdate struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Rating      int    `json:"rating"`
	RatingDelta int    `json:"ratingDelta"`
	XP          int    `json:"xp"`
	XPGain      int    `json:"xpGain"`
	LevelBefore int    `json:"levelBefore"`
	Level       int    `json:"level"`
	CoinsEarned int    `json:"coinsEarned"`
	CoinBalance int    `json:"coinBalance"`
}

// MatchRecord is the persisted history row of a session, keyed by session id
type MatchRecord struct {
	ID             string    `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(64)"`
	P1ID           string    `json:"p1Id" bson:"p1Id" gorm:"column:p1_id;type:varchar(64);index"`
	P2ID           string    `json:"p2Id" bson:"p2Id" gorm:"column:p2_id;type:varchar(64);index"`
	P1Username     string    `json:"p1Username" bson:"p1Username" gorm:"column:p1_username"`
	P2Username     string    `json:"p2Username" bson:"p2Username" gorm:"column:p2_username"`
	P1WPM          int       `json:"p1Wpm" bson:"p1Wpm" gorm:"column:p1_wpm"`
	P2WPM          int       `json:"p2Wpm" bson:"p2Wpm" gorm:"column:p2_wpm"`
	P1Acc          float64   `json:"p1Acc" bson:"p1Acc" gorm:"column:p1_acc"`
	P2Acc          float64   `json:"p2Acc" bson:"p2Acc" gorm:"column:p2_acc"`
	P1FinishedBy   string    `json:"p1FinishedBy" bson:"p1FinishedBy" gorm:"column:p1_finished_by"`
	P2FinishedBy   string    `json:"p2FinishedBy" bson:"p2FinishedBy" gorm:"column:p2_finished_by"`
	P1RatingBefore int       `json:"p1RatingBefore" bson:"p1RatingBefore" gorm:"column:p1_rating_before"`
	P2RatingBefore int       `json:"p2RatingBefore" bson:"p2RatingBefore" gorm:"column:p2_rating_before"`
	P1RatingAfter  int       `json:"p1RatingAfter" bson:"p1RatingAfter" gorm:"column:p1_rating_after"`
	P2RatingAfter  int       `json:"p2RatingAfter" bson:"p2RatingAfter" gorm:"column:p2_rating_after"`
	P1XP           int       `json:"p1Xp" bson:"p1Xp" gorm:"column:p1_xp"`
	P2XP           int       `json:"p2Xp" bson:"p2Xp" gorm:"column:p2_xp"`
	P1Coins        int       `json:"p1Coins" bson:"p1Coins" gorm:"column:p1_coins"`
	P2Coins        int       `json:"p2Coins" bson:"p2Coins" gorm:"column:p2_coins"`
	WinnerID       *string   `json:"winnerId" bson:"winnerId" gorm:"column:winner_id;type:varchar(64)"`
	Reason         string    `json:"reason" bson:"reason" gorm:"column:reason"`
	ElapsedMS      int64     `json:"elapsedMs" bson:"elapsedMs" gorm:"column:elapsed_ms"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

func (MatchRecord) TableName() string { return "matches" }
