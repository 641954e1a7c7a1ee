package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when a Redis round-trip fails.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when no record exists for a session id.
var ErrSessionNotFound = errors.New("session not found")

const refreshMaxRetries = 3

// Store keeps one record per session id under "<prefix>:<sessionID>".
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the key namespace ("session" yields "session:<id>").
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

// Key returns the Redis key holding sessionID.
func (s *Store) Key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save writes sess with the given TTL, replacing any existing record.
//
//	Performance: 1 Redis SET.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.Key(sess.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get reads and decodes the record for sessionID. A missing key yields
// ErrSessionNotFound; an undecodable blob yields ErrSessionCorrupt.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.Key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	return sess, nil
}

// Refresh replaces the embedded access token, stamps LastActivity, and
// re-applies the full ttl measured from now. The new expiry is now+ttl, never
// the old expiry plus ttl.
//
// The read-modify-write runs under WATCH so a concurrent delete is not
// resurrected.
//
//	Performance: WATCH + GET + MULTI/SET/EXEC.
func (s *Store) Refresh(ctx context.Context, sessionID, accessToken string, now time.Time, ttl time.Duration) (*Session, error) {
	key := s.Key(sessionID)
	var refreshed *Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		sess, err := Decode(data)
		if err != nil {
			return err
		}
		sess.SessionID = sessionID
		sess.AccessToken = accessToken
		sess.LastActivity = now.UnixMilli()
		sess.ExpiresAt = now.Add(ttl).UnixMilli()

		next, err := Encode(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		refreshed = sess
		return nil
	}

	for attempt := 0; attempt < refreshMaxRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return refreshed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionCorrupt) || errors.Is(err, ErrRedisUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil, fmt.Errorf("%w: refresh contention on %s", ErrRedisUnavailable, sessionID)
}

// Delete removes the record for sessionID. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteMany removes every listed record in one DEL and returns how many
// keys existed. An empty list is a no-op.
func (s *Store) DeleteMany(ctx context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, s.Key(id))
	}

	n, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Ping reports Redis round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
