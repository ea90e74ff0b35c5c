// Package cache handles Redis caching of hot redirect lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmdto/linkshort/internal/config"
	"github.com/jmdto/linkshort/internal/models"
)

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the raw byte-level caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache client and verifies connectivity.
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get retrieves a value from the cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores a value in the cache with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes values from the cache.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Ping checks if the cache is healthy.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the cache connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// LinkCache stores link and variant records for the redirect hot path.
// Cached entries carry what resolution needs (destination URL and UTM
// fields); click counts are never read from the cache.
type LinkCache struct {
	cache Cache
	ttl   time.Duration
}

// NewLinkCache creates a cache for redirect lookups.
func NewLinkCache(cache Cache, ttl time.Duration) *LinkCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &LinkCache{cache: cache, ttl: ttl}
}

// cachedVariant bundles a variant with its parent link snapshot.
type cachedVariant struct {
	Variant models.Variant `json:"variant"`
	Parent  models.Link    `json:"parent"`
}

// GetLink retrieves a cached base link.
func (c *LinkCache) GetLink(ctx context.Context, code string) (*models.Link, error) {
	data, err := c.cache.Get(ctx, linkKey(code))
	if err != nil {
		return nil, err
	}
	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached link: %w", err)
	}
	return &link, nil
}

// SetLink stores a base link.
func (c *LinkCache) SetLink(ctx context.Context, link *models.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}
	return c.cache.Set(ctx, linkKey(link.ShortCode), data, c.ttl)
}

// GetVariant retrieves a cached variant with its parent populated.
func (c *LinkCache) GetVariant(ctx context.Context, code string) (*models.Variant, error) {
	data, err := c.cache.Get(ctx, variantKey(code))
	if err != nil {
		return nil, err
	}
	var entry cachedVariant
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached variant: %w", err)
	}
	variant := entry.Variant
	parent := entry.Parent
	variant.Parent = &parent
	return &variant, nil
}

// SetVariant stores a variant together with its parent link snapshot.
func (c *LinkCache) SetVariant(ctx context.Context, variant *models.Variant) error {
	if variant.Parent == nil {
		return nil
	}
	entry := cachedVariant{Variant: *variant, Parent: *variant.Parent}
	entry.Variant.Parent = nil
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal variant: %w", err)
	}
	return c.cache.Set(ctx, variantKey(variant.ShortCode), data, c.ttl)
}

// DeleteLink evicts a base link entry.
func (c *LinkCache) DeleteLink(ctx context.Context, code string) error {
	return c.cache.Delete(ctx, linkKey(code))
}

// DeleteVariants evicts variant entries.
func (c *LinkCache) DeleteVariants(ctx context.Context, codes ...string) error {
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = variantKey(code)
	}
	return c.cache.Delete(ctx, keys...)
}

// Ping checks cache health.
func (c *LinkCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}

func linkKey(code string) string {
	return "link:" + code
}

func variantKey(code string) string {
	return "variant:" + code
}
