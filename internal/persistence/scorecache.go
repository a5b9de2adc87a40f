package persistence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const scoreKeyPrefix = "trust:score:"

// ScoreCache is a derived view over the trust ledger kept in Redis.
// The ledger remains the source of truth; every append invalidates the
// cached value, so a miss is always answered by recomputation.
type ScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewScoreCache wraps a Redis client. A nil client disables caching
// and every lookup misses.
func NewScoreCache(r *Redis, ttl time.Duration) *ScoreCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	var client *redis.Client
	if r != nil {
		client = r.Client
	}
	return &ScoreCache{client: client, ttl: ttl}
}

// Get returns the cached score and whether it was present.
func (c *ScoreCache) Get(ctx context.Context, userID string) (int, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, scoreKeyPrefix+userID).Result()
	if err != nil {
		return 0, false
	}
	score, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return score, true
}

// Set stores the freshly computed score.
func (c *ScoreCache) Set(ctx context.Context, userID string, score int) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, scoreKeyPrefix+userID, strconv.Itoa(score), c.ttl).Err()
}

// Invalidate drops the cached score after a ledger append.
func (c *ScoreCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, scoreKeyPrefix+userID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
