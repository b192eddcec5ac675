package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) ports.Store {
	return &RedisStore{
		client: client,
		prefix: "paydesk:",
	}
}

// ConsumeNonce claims the nonce with SETNX so concurrent verifications cannot both succeed
func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce string, expiry time.Duration) error {
	key := s.prefix + "nonce:" + nonce

	ok, err := s.client.SetNX(ctx, key, "1", expiry).Result()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !ok {
		return core.ErrNonceReused
	}
	return nil
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + "invalidated:" + tokenID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + "invalidated:" + tokenID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}
