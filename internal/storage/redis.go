package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps visitor state in Redis. Every write refreshes the TTL so an idle
// visitor's guest cart eventually expires; jitter spreads expirations out.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	baseTTL time.Duration
	jitter  time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  "storefront",
		baseTTL: ttl,
		jitter:  time.Hour,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	ttl := r.baseTTL
	if ttl > 0 && r.jitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(r.jitter)))
	}
	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}
