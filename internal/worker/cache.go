package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by caches for absent keys.
var ErrCacheMiss = errors.New("cache miss")

const jobKeyPrefix = "assetmeta:job:"

// Cache abstracts the Redis operations used to publish job outcomes.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a Cache backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a connected client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get reads a value. Absent keys yield ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

// IsCacheMiss reports whether err signals an absent key.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss) || errors.Is(err, redis.Nil)
}

func cacheKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func putJobRecord(ctx context.Context, c Cache, rec JobRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	return c.Set(ctx, cacheKey(rec.JobID), string(payload), ttl)
}

func getJobRecord(ctx context.Context, c Cache, jobID string) (*JobRecord, error) {
	value, err := c.Get(ctx, cacheKey(jobID))
	if err != nil {
		return nil, err
	}
	var rec JobRecord
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, fmt.Errorf("decode cached job record: %w", err)
	}
	return &rec, nil
}
