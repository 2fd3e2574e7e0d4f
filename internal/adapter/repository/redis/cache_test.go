package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	cache := NewCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "entity:code:SKU-1", []byte("01J0ENTITY"), time.Minute))

	val, err := cache.Get(ctx, "entity:code:SKU-1")
	require.NoError(t, err)
	assert.Equal(t, "01J0ENTITY", string(val))
	assert.True(t, mr.Exists("ledger:cache:entity:code:SKU-1"))
}

func TestCache_Namespace(t *testing.T) {
	client, mr := newTestRedisClient(t)
	a := NewCache(client, WithNamespace("a:"))
	b := NewCache(client, WithNamespace("b:"))
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", []byte("1"), time.Minute))

	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.True(t, mr.Exists("a:k"))
}

func TestCache_Expiry(t *testing.T) {
	client, mr := newTestRedisClient(t)
	cache := NewCache(client, WithDefaultTTL(30*time.Second))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "explicit", []byte("v"), time.Second))
	require.NoError(t, cache.Set(ctx, "default", []byte("v"), 0))
	assert.Equal(t, 30*time.Second, mr.TTL("ledger:cache:default"))

	mr.FastForward(2 * time.Second)

	_, err := cache.Get(ctx, "explicit")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = cache.Get(ctx, "default")
	assert.NoError(t, err)

	mr.FastForward(time.Minute)
	_, err = cache.Get(ctx, "default")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_Delete(t *testing.T) {
	client, _ := newTestRedisClient(t)
	cache := NewCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "foo", []byte("bar"), time.Minute))
	require.NoError(t, cache.Delete(ctx, "foo"))
	require.NoError(t, cache.Delete(ctx, "never-set"))

	_, err := cache.Get(ctx, "foo")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_ServerDown(t *testing.T) {
	client, mr := newTestRedisClient(t)
	cache := NewCache(client)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
