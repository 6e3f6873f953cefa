package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"typeduel/internal/model"
)

// UserCache handles Redis operations for user profiles read at connect time
type UserCache interface {
	SetUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	Invalidate(ctx context.Context, userIDs ...string) error
}

type userCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUserCache creates a new user cache
func NewUserCache(client *redis.Client, ttl time.Duration) UserCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &userCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *userCache) key(userID string) string {
	return "user:" + userID
}

func (c *userCache) SetUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(user.ID), data, c.ttl).Err()
}

func (c *userCache) GetUser(ctx context.Context, userID string) (*model.User, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *userCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = c.key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
