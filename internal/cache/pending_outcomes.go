package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"typeduel/internal/model"
)

const pendingOutcomesKey = "arena:outcomes:pending"

// PendingOutcomeQueue holds match outcomes whose commit failed, for later retry
type PendingOutcomeQueue interface {
	Push(ctx context.Context, outcome *model.MatchOutcome) error
	Pop(ctx context.Context) (*model.MatchOutcome, error)
	Len(ctx context.Context) (int64, error)
}

type pendingOutcomeQueue struct {
	client *redis.Client
}

// NewPendingOutcomeQueue creates a Redis list backed retry queue
func NewPendingOutcomeQueue(client *redis.Client) PendingOutcomeQueue {
	return &pendingOutcomeQueue{client: client}
}

func (q *pendingOutcomeQueue) Push(ctx context.Context, outcome *model.MatchOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome %s: %w", outcome.SessionID, err)
	}
	return q.client.RPush(ctx, pendingOutcomesKey, data).Err()
}

// Pop returns the oldest pending outcome, or nil when the queue is empty
func (q *pendingOutcomeQueue) Pop(ctx context.Context) (*model.MatchOutcome, error) {
	data, err := q.client.LPop(ctx, pendingOutcomesKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var outcome model.MatchOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("decode pending outcome: %w", err)
	}
	return &outcome, nil
}

func (q *pendingOutcomeQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, pendingOutcomesKey).Result()
}
