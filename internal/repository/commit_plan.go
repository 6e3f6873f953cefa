package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"typeduel/internal/model"
	"typeduel/internal/progression"
)

const ledgerReasonLevelUp = "level_up"

// commitPlan is the set of writes a single outcome commit performs
type commitPlan struct {
	users   [2]model.User
	updates []model.ProgressUpdate
	ledger  []model.CoinLedgerEntry
	record  *model.MatchRecord
}

func validateOutcome(o *model.MatchOutcome) error {
	if o == nil || o.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrInvalidOutcome)
	}
	a, b := o.Players[0].UserID, o.Players[1].UserID
	if a == "" || b == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidOutcome)
	}
	if a == b {
		return fmt.Errorf("%w: user %s on both sides", ErrInvalidOutcome, a)
	}
	return nil
}

// planCommit computes the new state of both users from their current rows.
// Ratings move by the delta computed at resolution time so that concurrent
// matches of the same user compose.
func planCommit(o *model.MatchOutcome, current [2]model.User) (*commitPlan, error) {
	plan := &commitPlan{}
	for i, p := range o.Players {
		u := current[i]
		if u.ID != p.UserID {
			return nil, fmt.Errorf("%w: row %s does not match player %s", ErrInvalidOutcome, u.ID, p.UserID)
		}
		delta := p.RatingAfter - p.RatingBefore
		xp := progression.ApplyXP(u.XP, p.XPGain)

		u.Rating += delta
		u.XP = xp.XP
		u.CoinBalance += xp.CoinsEarned
		plan.users[i] = u

		username := p.Username
		if username == "" {
			username = model.DisplayName(u.Username, u.Email)
		}
		plan.updates = append(plan.updates, model.ProgressUpdate{
			UserID:      u.ID,
			Username:    username,
			Rating:      u.Rating,
			RatingDelta: delta,
			XP:          u.XP,
			XPGain:      xp.XP - xp.XPBefore,
			LevelBefore: xp.LevelBefore,
			Level:       xp.Level,
			CoinsEarned: xp.CoinsEarned,
			CoinBalance: u.CoinBalance,
		})

		if xp.CoinsEarned > 0 {
			entry, err := levelUpEntry(u.ID, xp, "matchId", o.SessionID, o.ResolvedAt)
			if err != nil {
				return nil, err
			}
			plan.ledger = append(plan.ledger, entry)
		}
	}

	a, b := o.Players[0], o.Players[1]
	plan.record = &model.MatchRecord{
		ID:             o.SessionID,
		P1ID:           a.UserID,
		P2ID:           b.UserID,
		P1Username:     plan.updates[0].Username,
		P2Username:     plan.updates[1].Username,
		P1WPM:          a.Stats.WPM,
		P2WPM:          b.Stats.WPM,
		P1Acc:          a.Stats.Acc,
		P2Acc:          b.Stats.Acc,
		P1FinishedBy:   string(a.Stats.FinishedBy),
		P2FinishedBy:   string(b.Stats.FinishedBy),
		P1RatingBefore: a.RatingBefore,
		P2RatingBefore: b.RatingBefore,
		P1RatingAfter:  a.RatingAfter,
		P2RatingAfter:  b.RatingAfter,
		P1XP:           a.XPGain,
		P2XP:           b.XPGain,
		P1Coins:        plan.updates[0].CoinsEarned,
		P2Coins:        plan.updates[1].CoinsEarned,
		WinnerID:       o.WinnerUserID,
		Reason:         o.Reason,
		ElapsedMS:      o.ElapsedMS,
		CreatedAt:      o.ResolvedAt,
	}
	return plan, nil
}

// levelUpEntry is the ledger row for coins earned by crossing levels.
// sourceKey names the meta field that points at what granted the XP.
func levelUpEntry(userID string, xp progression.Update, sourceKey, sourceID string, at time.Time) (model.CoinLedgerEntry, error) {
	meta, err := json.Marshal(map[string]interface{}{
		"from":    xp.LevelBefore,
		"to":      xp.Level,
		sourceKey: sourceID,
	})
	if err != nil {
		return model.CoinLedgerEntry{}, err
	}
	return model.CoinLedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Delta:     xp.CoinsEarned,
		Reason:    ledgerReasonLevelUp,
		Meta:      string(meta),
		CreatedAt: at,
	}, nil
}

// soloPlan is the set of writes a solo run commit performs
type soloPlan struct {
	user   model.User
	update model.ProgressUpdate
	ledger []model.CoinLedgerEntry
}

func validateSoloRun(run *model.SoloRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: missing run id", ErrInvalidSoloRun)
	}
	if run.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidSoloRun)
	}
	if run.XPGain < 0 {
		return fmt.Errorf("%w: negative xp", ErrInvalidSoloRun)
	}
	return nil
}

func planSoloRun(run *model.SoloRun, current model.User) (*soloPlan, error) {
	xp := progression.ApplyXP(current.XP, run.XPGain)
	u := current
	u.XP = xp.XP
	u.CoinBalance += xp.CoinsEarned

	plan := &soloPlan{
		user: u,
		update: model.ProgressUpdate{
			UserID:      u.ID,
			Username:    model.DisplayName(u.Username, u.Email),
			Rating:      u.Rating,
			XP:          u.XP,
			XPGain:      xp.XP - xp.XPBefore,
			LevelBefore: xp.LevelBefore,
			Level:       xp.Level,
			CoinsEarned: xp.CoinsEarned,
			CoinBalance: u.CoinBalance,
		},
	}
	if xp.CoinsEarned > 0 {
		entry, err := levelUpEntry(u.ID, xp, "soloRunId", run.ID, run.CreatedAt)
		if err != nil {
			return nil, err
		}
		plan.ledger = append(plan.ledger, entry)
	}
	return plan, nil
}
