package repository

import (
	"context"
	"errors"

	"typeduel/internal/model"
)

// LedgerLimit caps how many ledger rows LedgerFor returns
const LedgerLimit = 100

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrOutcomeAlreadyCommitted = errors.New("match outcome already committed")
	ErrInvalidOutcome          = errors.New("invalid match outcome")
	ErrInvalidSoloRun          = errors.New("invalid solo run")
)

// UserRepo reads and creates player accounts
type UserRepo interface {
	// GetUser returns nil when the user does not exist
	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}

// Store is the persistent side of the arena: accounts, match history and
// the coin ledger.
type Store interface {
	UserRepo
	// CommitMatchOutcome applies ratings, XP, coins and the match record in
	// one transaction. A second commit of the same session fails with
	// ErrOutcomeAlreadyCommitted and changes nothing.
	CommitMatchOutcome(ctx context.Context, outcome *model.MatchOutcome) ([]model.ProgressUpdate, error)
	// CommitSoloRun stores the run and applies its XP, with any level-up
	// coins and their ledger row, in one transaction.
	CommitSoloRun(ctx context.Context, run *model.SoloRun) (*model.ProgressUpdate, error)
	GetMatch(ctx context.Context, id string) (*model.MatchRecord, error)
	// LedgerFor returns the newest LedgerLimit coin ledger rows of a user
	LedgerFor(ctx context.Context, userID string) ([]model.CoinLedgerEntry, error)
	AutoMigrate(ctx context.Context) error
	Close() error
}
