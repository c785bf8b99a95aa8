package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisSlidingWindow is a Limiter over a Redis sorted set per key, scored by
// event time in nanoseconds. Useful when several issuer instances must share
// one attempt budget.
type RedisSlidingWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisSlidingWindow(client *redis.Client, limit int, window time.Duration) *RedisSlidingWindow {
	return &RedisSlidingWindow{client: client, limit: limit, window: window}
}

func (r *RedisSlidingWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	cutoff := now.Add(-r.window).UnixNano()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("ratelimit count %s: %w", key, err)
	}

	count := countCmd.Val()
	if count >= int64(r.limit) {
		idx := count - int64(r.limit)
		blocking, err := r.client.ZRangeWithScores(ctx, key, idx, idx).Result()
		if err != nil {
			return false, 0, fmt.Errorf("ratelimit inspect %s: %w", key, err)
		}
		retryAfter := r.window
		if len(blocking) == 1 {
			at := time.Unix(0, int64(blocking[0].Score))
			retryAfter = at.Add(r.window).Sub(now)
		}
		return false, retryAfter, nil
	}

	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	pipe = r.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.PExpire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("ratelimit record %s: %w", key, err)
	}

	return true, 0, nil
}
