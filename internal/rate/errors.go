package rate

import "errors"

var (
	// ErrRedisUnavailable is returned when limiter bookkeeping cannot reach Redis.
	// Callers fail open on it.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
