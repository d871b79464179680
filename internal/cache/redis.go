package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darkodi/whatsapp-redirect/internal/config"
	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// ErrCacheMiss is returned when a key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// RedisCache keeps resolved links and IP locations in Redis
type RedisCache struct {
	client  *redis.Client
	prefix  string
	linkTTL time.Duration
	geoTTL  time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisCacheWithClient(client, cfg), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, cfg *config.RedisConfig) *RedisCache {
	return &RedisCache{
		client:  client,
		prefix:  cfg.KeyPrefix,
		linkTTL: cfg.LinkCacheTTL,
		geoTTL:  cfg.GeoCacheTTL,
	}
}

// Client exposes the underlying client for other Redis-backed components
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Key applies the configured prefix
func (c *RedisCache) Key(parts ...string) string {
	k := c.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// ============================================================
// LINKS
// ============================================================

// LinkCachingEnabled reports whether links are cached at all
func (c *RedisCache) LinkCachingEnabled() bool {
	return c.linkTTL > 0
}

// GetLink returns the cached link for key
func (c *RedisCache) GetLink(ctx context.Context, key model.LinkKey) (*model.CustomLink, error) {
	var link model.CustomLink
	if err := c.getJSON(ctx, c.Key("link", key.String()), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// SetLink caches link under key. Counters are not cached.
func (c *RedisCache) SetLink(ctx context.Context, key model.LinkKey, link *model.CustomLink) error {
	if !c.LinkCachingEnabled() {
		return nil
	}
	entry := *link
	entry.ClickCount = 0
	return c.setJSON(ctx, c.Key("link", key.String()), entry, c.linkTTL)
}

// DeleteLink drops a cached link, e.g. after it was deactivated
func (c *RedisCache) DeleteLink(ctx context.Context, key model.LinkKey) error {
	return c.client.Del(ctx, c.Key("link", key.String())).Err()
}

// ============================================================
// GEOLOCATION
// ============================================================

// GetLocation returns the cached location of ip
func (c *RedisCache) GetLocation(ctx context.Context, ip string) (*model.Location, error) {
	var loc model.Location
	if err := c.getJSON(ctx, c.Key("geo", ip), &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (c *RedisCache) SetLocation(ctx context.Context, ip string, loc model.Location) error {
	return c.setJSON(ctx, c.Key("geo", ip), loc, c.geoTTL)
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}
