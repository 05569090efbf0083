package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "hnpager:page:"

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache: key not found")

// TextCache stores extracted page text by URL.
type TextCache interface {
	Get(ctx context.Context, pageURL string) (string, error)
	Set(ctx context.Context, pageURL, text string, ttl time.Duration) error
}

func cacheKey(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// MemoryCache keeps page text in process memory.
type MemoryCache struct {
	cache *cache.Cache
}

// NewMemoryCache creates an in-memory cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{cache: cache.New(ttl, 2*ttl)}
}

func (c *MemoryCache) Get(_ context.Context, pageURL string) (string, error) {
	v, found := c.cache.Get(cacheKey(pageURL))
	if !found {
		return "", ErrCacheMiss
	}
	text, ok := v.(string)
	if !ok {
		return "", ErrCacheMiss
	}
	return text, nil
}

func (c *MemoryCache) Set(_ context.Context, pageURL, text string, ttl time.Duration) error {
	c.cache.Set(cacheKey(pageURL), text, ttl)
	return nil
}

// RedisCache keeps page text in Redis so it survives between scheduled runs.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, pageURL string) (string, error) {
	text, err := c.client.Get(ctx, cacheKey(pageURL)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return text, nil
}

func (c *RedisCache) Set(ctx context.Context, pageURL, text string, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKey(pageURL), text, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
