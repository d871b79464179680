//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/darkodi/whatsapp-redirect/internal/config"
	"github.com/darkodi/whatsapp-redirect/internal/model"
)

func setupRedis(t *testing.T, cfg config.RedisConfig) *RedisCache {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return NewRedisCacheWithClient(client, &cfg)
}

func TestRedisCache_Links(t *testing.T) {
	ctx := context.Background()
	c := setupRedis(t, config.RedisConfig{KeyPrefix: "test:", LinkCacheTTL: time.Minute, GeoCacheTTL: time.Hour})

	owner := int64(7)
	key := model.LinkKey{Name: "promo", OwnerID: &owner}

	_, err := c.GetLink(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	link := &model.CustomLink{ID: 3, OwnerID: 7, Name: "promo", Message: "oi", IsActive: true, ClickCount: 12}
	require.NoError(t, c.SetLink(ctx, key, link))

	got, err := c.GetLink(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, "oi", got.Message)
	assert.Zero(t, got.ClickCount)

	ttl, err := c.Client().TTL(ctx, "test:link:7/promo").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	require.NoError(t, c.DeleteLink(ctx, key))
	_, err = c.GetLink(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_LinkCachingDisabled(t *testing.T) {
	ctx := context.Background()
	c := setupRedis(t, config.RedisConfig{GeoCacheTTL: time.Hour})

	key := model.LinkKey{Name: "promo"}
	require.NoError(t, c.SetLink(ctx, key, &model.CustomLink{ID: 1, Name: "promo"}))

	_, err := c.GetLink(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Locations(t *testing.T) {
	ctx := context.Background()
	c := setupRedis(t, config.RedisConfig{GeoCacheTTL: time.Hour})

	loc := model.Location{City: "Curitiba", Region: "PR", Country: "Brazil", Latitude: -25.4, Longitude: -49.3}
	require.NoError(t, c.SetLocation(ctx, "203.0.113.9", loc))

	got, err := c.GetLocation(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, loc, *got)

	_, err = c.GetLocation(ctx, "198.51.100.1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
