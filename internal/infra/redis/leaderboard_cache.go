package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizhub/internal/domain"
)

const leaderboardKey = "leaderboard:top"

// LeaderboardSource computes the current top-10 aggregate.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context) ([]domain.LeaderboardRow, error)
}

// LeaderboardCache keeps the top-10 aggregate in Redis for a short TTL so
// the public endpoint does not re-run the group-by on every hit. The submit
// path calls Invalidate after each scored submission, so the TTL only bounds
// staleness for writes that bypass the attempt service.
type LeaderboardCache struct {
	client *redis.Client
	source LeaderboardSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewLeaderboardCache(client *redis.Client, source LeaderboardSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, source: source, ttl: ttl}
}

func (c *LeaderboardCache) Leaderboard(ctx context.Context) ([]domain.LeaderboardRow, error) {
	if rows, ok := c.fromCache(ctx); ok {
		return rows, nil
	}

	result, err, _ := c.sf.Do(leaderboardKey, func() (interface{}, error) {
		if rows, ok := c.fromCache(ctx); ok {
			return rows, nil
		}

		rows, err := c.source.Leaderboard(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(rows); err == nil {
			_ = c.client.Set(ctx, leaderboardKey, data, c.ttl).Err()
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardRow), nil
}

// Invalidate drops the cached snapshot, forcing the next read to recompute.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, leaderboardKey).Err()
}

func (c *LeaderboardCache) fromCache(ctx context.Context) ([]domain.LeaderboardRow, bool) {
	data, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []domain.LeaderboardRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}
