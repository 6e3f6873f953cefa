package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"typeduel/internal/model"
)

// GormStore persists the arena in a SQL database through gorm
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
	}
}

// OpenPostgres connects to PostgreSQL
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens an embedded database. Writes are serialized on one connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func (s *GormStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&model.User{}, &model.CoinLedgerEntry{}, &model.MatchRecord{}, &model.SoloRun{})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.Rating == 0 {
		user.Rating = model.DefaultRating
	}
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *GormStore) GetMatch(ctx context.Context, id string) (*model.MatchRecord, error) {
	var rec model.MatchRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) CommitMatchOutcome(ctx context.Context, outcome *model.MatchOutcome) ([]model.ProgressUpdate, error) {
	if err := validateOutcome(outcome); err != nil {
		return nil, err
	}

	var updates []model.ProgressUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.MatchRecord{}).Where("id = ?", outcome.SessionID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrOutcomeAlreadyCommitted
		}

		// lock rows in id order so two commits sharing a user cannot deadlock
		ids := []string{outcome.Players[0].UserID, outcome.Players[1].UserID}
		sort.Strings(ids)
		rows := make(map[string]model.User, 2)
		for _, id := range ids {
			var u model.User
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrUserNotFound, id)
			}
			if err != nil {
				return err
			}
			rows[id] = u
		}

		plan, err := planCommit(outcome, [2]model.User{
			rows[outcome.Players[0].UserID],
			rows[outcome.Players[1].UserID],
		})
		if err != nil {
			return err
		}

		for _, u := range plan.users {
			if err := tx.Model(&model.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
				"rating":       u.Rating,
				"xp":           u.XP,
				"coin_balance": u.CoinBalance,
			}).Error; err != nil {
				return err
			}
		}
		if len(plan.ledger) > 0 {
			if err := tx.Create(&plan.ledger).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(plan.record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrOutcomeAlreadyCommitted
			}
			return err
		}

		updates = plan.updates
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit outcome %s: %w", outcome.SessionID, err)
	}
	return updates, nil
}

func (s *GormStore) CommitSoloRun(ctx context.Context, run *model.SoloRun) (*model.ProgressUpdate, error) {
	if err := validateSoloRun(run); err != nil {
		return nil, err
	}

	var update model.ProgressUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", run.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, run.UserID)
		}
		if err != nil {
			return err
		}

		plan, err := planSoloRun(run, u)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
			"xp":           plan.user.XP,
			"coin_balance": plan.user.CoinBalance,
		}).Error; err != nil {
			return err
		}
		if len(plan.ledger) > 0 {
			if err := tx.Create(&plan.ledger).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(run).Error; err != nil {
			return err
		}

		update = plan.update
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit solo run %s: %w", run.ID, err)
	}
	return &update, nil
}

// LedgerFor lists the latest coin ledger rows of a user, newest first
func (s *GormStore) LedgerFor(ctx context.Context, userID string) ([]model.CoinLedgerEntry, error) {
	var rows []model.CoinLedgerEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(LedgerLimit).
		Find(&rows).Error
	return rows, err
}
