package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/backend/internal/domain"
)

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache("not-a-redis-url", "pricescout:")
	assert.Error(t, err)
}

func TestNewRedisCache_ValidURL(t *testing.T) {
	c, err := NewRedisCache("redis://localhost:6379/2", "pricescout:")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "pricescout:search:drill", c.key("search:drill"))
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheFromClient(client, "test:")
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	_, err = c.Exists(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	assert.ErrorIs(t, c.Ping(ctx), domain.ErrCacheUnavailable)
}
