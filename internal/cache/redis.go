// Package cache is the best-effort key/value side channel backed by Redis.
// Every method tolerates a nil client and a failing server: reads degrade to
// a miss and writes are dropped after a warning. Nothing here is a source of
// truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a Redis client. The zero value and a Store built around a nil
// client are both valid and behave as an always-empty cache.
type Store struct {
	rdb *redis.Client
	log *slog.Logger
}

// New returns a Store over rdb. rdb may be nil when Redis is unavailable.
func New(rdb *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{rdb: rdb, log: logger.With("component", "cache")}
}

// Enabled reports whether a Redis client is attached.
func (s *Store) Enabled() bool { return s != nil && s.rdb != nil }

// Ping checks the server. It returns nil when the cache is disabled.
func (s *Store) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Ping(ctx).Err()
}

// GetJSON decodes the value at key into dst. It reports false on a miss,
// a decoding problem or a server error.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) bool {
	if !s.Enabled() {
		return false
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("cache get failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.log.Warn("cache decode failed", "key", key, "err", err)
		return false
	}
	return true
}

// SetJSON stores v at key with the given expiry.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := s.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		s.log.Warn("cache set failed", "key", key, "err", err)
	}
}

// Delete removes keys.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn("cache delete failed", "keys", keys, "err", err)
	}
}

// DeletePrefix removes every key starting with prefix using SCAN so the
// server is never blocked by KEYS.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) {
	if !s.Enabled() {
		return
	}
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			s.log.Warn("cache scan failed", "prefix", prefix, "err", err)
			return
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				s.log.Warn("cache delete failed", "prefix", prefix, "err", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
