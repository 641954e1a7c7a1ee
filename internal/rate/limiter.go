package rate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	FailLimit  int
	FailWindow time.Duration
	BlockTime  time.Duration
}

// Limiter counts authentication failures per (client ip, request path) and
// sets a block flag once FailLimit is reached.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// IsFailureStatus reports whether status counts as a judged failed attempt.
func IsFailureStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// Blocked reports whether the block flag is set for (ip, path).
func (l *Limiter) Blocked(ctx context.Context, ip, path string) (bool, error) {
	n, err := l.redis.Exists(ctx, blockKey(ip, path)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Observe updates the bookkeeping for a completed response. A 401 or 403
// records a failure; any other status clears the counter. The returned flag
// is true when this response tripped the block.
func (l *Limiter) Observe(ctx context.Context, ip, path string, status int) (bool, error) {
	if IsFailureStatus(status) {
		return l.RecordFailure(ctx, ip, path)
	}
	return false, l.Reset(ctx, ip, path)
}

// RecordFailure increments the failure counter. The first hit in a window
// sets its expiry; reaching FailLimit sets the block flag for BlockTime and
// drops the counter.
func (l *Limiter) RecordFailure(ctx context.Context, ip, path string) (bool, error) {
	key := failKey(ip, path)
	count, err := l.incrementWithTTL(ctx, key, l.config.FailWindow)
	if err != nil {
		return false, err
	}
	if count < int64(l.config.FailLimit) {
		return false, nil
	}

	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, blockKey(ip, path), "1", l.config.BlockTime)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return true, nil
}

// Reset clears the failure counter for (ip, path). The block flag is left to expire.
func (l *Limiter) Reset(ctx context.Context, ip, path string) error {
	if err := l.redis.Del(ctx, failKey(ip, path)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Failures returns the current counter for (ip, path). Missing keys return zero.
func (l *Limiter) Failures(ctx context.Context, ip, path string) (int, error) {
	count, err := l.redis.Get(ctx, failKey(ip, path)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// incrementWithTTL bumps key and arms its expiry in one transaction. NX
// leaves an existing expiry alone, so the window stays fixed from the first
// failure.
func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}
