package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/stocktrail/stocktrail/internal/ports"
)

const idempotencyKeyPrefix = "submission:idem:"

// RedisIdempotencyStore records submission idempotency keys with a TTL.
// A key that registers successfully has never been seen inside the
// retention window; a replayed delivery of the same submission fails to
// register and is rejected before any ledger write.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) ports.IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

// Register claims the key atomically. Returns false when the key was
// already claimed.
func (s *RedisIdempotencyStore) Register(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to register idempotency key: %w", err)
	}
	return ok, nil
}
