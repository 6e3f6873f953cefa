package model

import "time"

// SoloRun is a persisted practice run. Solo runs earn XP but never move the rating.
type SoloRun struct {
	ID        string    `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(64)"`
	UserID    string    `json:"userId" bson:"userId" gorm:"index;type:varchar(64);not null"`
	WPM       int       `json:"wpm" bson:"wpm" gorm:"column:wpm"`
	Acc       float64   `json:"acc" bson:"acc"`
	Typed     int       `json:"typed" bson:"typed"`
	Correct   int       `json:"correct" bson:"correct"`
	Errors    int       `json:"errors" bson:"errors"`
	ElapsedMS int64     `json:"elapsedMs" bson:"elapsedMs" gorm:"column:elapsed_ms"`
	XPGain    int       `json:"xpGain" bson:"xpGain" gorm:"column:xp_gain"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func (SoloRun) TableName() string { return "solo_runs" }

// SoloResult is returned to the player after a solo run is recorded
type SoloResult struct {
	RunID       string `json:"runId"`
	XPGained    int    `json:"xpGained"`
	XPTotal     int    `json:"xpTotal"`
	LevelBefore int    `json:"levelBefore"`
	Level       int    `json:"level"`
	CoinsEarned int    `json:"coinsEarned"`
	CoinBalance int    `json:"coinBalance"`
}
