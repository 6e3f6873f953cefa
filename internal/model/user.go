package model

import "time"

// User is a persisted player account
type User struct {
	ID          string    `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(64)"`
	Email       string    `json:"email,omitempty" bson:"email" gorm:"type:varchar(255)"`
	Username    string    `json:"username" bson:"username" gorm:"type:varchar(64)"`
	Rating      int       `json:"rating" bson:"rating" gorm:"not null;default:200"`
	XP          int       `json:"xp" bson:"xp" gorm:"column:xp;not null;default:0"`
	CoinBalance int       `json:"coinBalance" bson:"coinBalance" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CoinLedgerEntry records a single coin grant or spend
type CoinLedgerEntry struct {
	ID        string    `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(64)"`
	UserID    string    `json:"userId" bson:"userId" gorm:"index;type:varchar(64);not null"`
	Delta     int       `json:"delta" bson:"delta" gorm:"not null"`
	Reason    string    `json:"reason" bson:"reason" gorm:"type:varchar(64);not null"`
	Meta      string    `json:"meta" bson:"meta" gorm:"type:text"` // JSON encoded
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func (CoinLedgerEntry) TableName() string { return "coin_ledger" }
