package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore on top of it
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, 24*time.Hour)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return store, mr, cleanup
}

func TestRedisStore(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	exerciseStore(t, store)
}

func TestRedisStore_KeyFormat(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, store.Set(context.Background(), "v1:guest_cart", []byte("{}")))
	assert.True(t, mr.Exists("storefront:v1:guest_cart"))
}

func TestRedisStore_TTLWithJitter(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, store.Set(context.Background(), "k", []byte("v")))

	ttl := mr.TTL("storefront:k")
	assert.True(t, ttl >= 24*time.Hour, "TTL should be at least base TTL")
	assert.True(t, ttl <= 25*time.Hour, "TTL should be base + max jitter")
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestRedisStore_Ping(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, store.Ping(context.Background()))
}
