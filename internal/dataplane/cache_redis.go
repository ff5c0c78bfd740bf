// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dataplane

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements [Cache] with per-entry TTL. The TTL is the only
// freshness mechanism besides version-token rotation: entries orphaned by a
// write expire on their own.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed data plane with the given TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Match implements [Cache].
func (cache *RedisCache) Match(ctx context.Context, cacheURL string) ([]byte, bool, error) {
	body, err := cache.client.Get(ctx, cacheURL).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("dataplane: match: %w", err)
	}
	return body, true, nil
}

// Put implements [Cache].
func (cache *RedisCache) Put(ctx context.Context, cacheURL string, body []byte) error {
	if err := cache.client.Set(ctx, cacheURL, body, cache.ttl).Err(); err != nil {
		return fmt.Errorf("dataplane: put: %w", err)
	}
	return nil
}
