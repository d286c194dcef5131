package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache backends accepted by NewCache
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const (
	DefaultMemoryEntries = 4096
	DefaultRedisTTL      = 24 * time.Hour
	redisKeyPrefix       = "plantscan:translate:"
)

// Cache stores translations by key
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// CacheKey is the cache key for text translated to target
func CacheKey(text, target string) string {
	return text + "::" + target
}

// MemoryCache is a bounded in-process LRU
type MemoryCache struct {
	lru *lru.Cache[string, string]
}

// NewMemoryCache creates an LRU holding up to size entries
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create translation cache: %w", err)
	}
	return &MemoryCache{lru: c}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string) error {
	m.lru.Add(key, value)
	return nil
}

func (m *MemoryCache) Clear(context.Context) error {
	m.lru.Purge()
	return nil
}

func (m *MemoryCache) Len(context.Context) (int, error) {
	return m.lru.Len(), nil
}

// RedisConfig holds the Redis connection for RedisCache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache shares translations between instances
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects and pings Redis
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRedisTTL
	}
	return &RedisCache{rdb: rdb, ttl: cfg.TTL}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes every translation key
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Len counts translation keys
func (r *RedisCache) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Close releases the Redis connection pool
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}

// NewCache builds the cache named by kind
func NewCache(kind string, redisCfg RedisConfig) (Cache, error) {
	switch kind {
	case "", CacheMemory:
		return NewMemoryCache(DefaultMemoryEntries)
	case CacheRedis:
		return NewRedisCache(redisCfg)
	default:
		return nil, fmt.Errorf("unknown translation cache %q", kind)
	}
}
