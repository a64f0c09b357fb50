package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	globalMinuteKey = "quota:global:minute"
	globalHourKey   = "quota:global:hour"

	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// GlobalLimiter tracks system-wide audit throughput in Redis sorted-set
// sliding windows. It is shared across all users and, in a multi-instance
// deployment, across replicas.
type GlobalLimiter struct {
	rdb          redis.Cmdable
	maxPerMinute int
	maxPerHour   int
}

// NewGlobalLimiter creates a limiter enforcing the aggregate per-minute and
// per-hour audit ceilings.
func NewGlobalLimiter(rdb redis.Cmdable, maxPerMinute, maxPerHour int) *GlobalLimiter {
	return &GlobalLimiter{rdb: rdb, maxPerMinute: maxPerMinute, maxPerHour: maxPerHour}
}

// Usage returns the number of audits recorded in the current minute and hour
// windows, pruning stale entries as a side effect.
func (gl *GlobalLimiter) Usage(ctx context.Context) (minute, hour int, err error) {
	now := time.Now()

	pipe := gl.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, globalMinuteKey, "-inf", msBound(now.Add(-minuteWindow)))
	pipe.ZRemRangeByScore(ctx, globalHourKey, "-inf", msBound(now.Add(-hourWindow)))
	minuteCmd := pipe.ZCard(ctx, globalMinuteKey)
	hourCmd := pipe.ZCard(ctx, globalHourKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("global limiter pipeline (clean+count): %w", err)
	}
	return int(minuteCmd.Val()), int(hourCmd.Val()), nil
}

// Overloaded reports whether either system-wide ceiling is currently
// reached. It does not count the prospective request; recording happens
// separately via RecordHit.
func (gl *GlobalLimiter) Overloaded(ctx context.Context) (bool, error) {
	minute, hour, err := gl.Usage(ctx)
	if err != nil {
		return false, err
	}
	return minute >= gl.maxPerMinute || hour >= gl.maxPerHour, nil
}

// RecordHit adds one completed audit to both windows.
func (gl *GlobalLimiter) RecordHit(ctx context.Context) error {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)
	score := float64(now.UnixMilli())

	pipe := gl.rdb.Pipeline()
	pipe.ZAdd(ctx, globalMinuteKey, redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, globalMinuteKey, minuteWindow+30*time.Second)
	pipe.ZAdd(ctx, globalHourKey, redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, globalHourKey, hourWindow+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("global limiter pipeline (add): %w", err)
	}
	return nil
}

func msBound(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli()), 'f', 0, 64)
}
