// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package controlplane

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/platform/constants"
)

// RedisStore implements [Store] on a shared Redis client. Keys have no TTL;
// the control plane is authoritative for the life of the deployment.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed control plane.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetVersion implements [Store].
func (store *RedisStore) GetVersion(ctx context.Context, table string) (string, bool, error) {
	token, err := store.client.Get(ctx, constants.KeyPrefixVersion+table).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("controlplane: get version: %w", err)
	}
	return token, true, nil
}

// SetVersion implements [Store].
func (store *RedisStore) SetVersion(ctx context.Context, table, token string) error {
	if err := store.client.Set(ctx, constants.KeyPrefixVersion+table, token, 0).Err(); err != nil {
		return fmt.Errorf("controlplane: set version: %w", err)
	}
	return nil
}

// BumpVersion implements [Store].
//
// Read-modify-write without a lock: two concurrent bumps may collapse into
// one observable token, which still invalidates every prior cache URL.
func (store *RedisStore) BumpVersion(ctx context.Context, table string) (string, error) {
	previous, _, err := store.GetVersion(ctx, table)
	if err != nil {
		return "", err
	}
	token := NextToken(previous)
	if err := store.SetVersion(ctx, table, token); err != nil {
		return "", err
	}
	return token, nil
}

// GetSchema implements [Store].
func (store *RedisStore) GetSchema(ctx context.Context, table string) (*catalog.SchemaPayload, bool, error) {
	raw, err := store.client.Get(ctx, constants.KeyPrefixSchema+table).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("controlplane: get schema: %w", err)
	}

	payload := &catalog.SchemaPayload{}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, false, fmt.Errorf("controlplane: decode schema: %w", err)
	}
	return payload, true, nil
}

// PutSchema implements [Store].
func (store *RedisStore) PutSchema(ctx context.Context, table string, payload *catalog.SchemaPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("controlplane: encode schema: %w", err)
	}
	if err := store.client.Set(ctx, constants.KeyPrefixSchema+table, raw, 0).Err(); err != nil {
		return fmt.Errorf("controlplane: put schema: %w", err)
	}
	return nil
}

// DeleteSchema implements [Store].
func (store *RedisStore) DeleteSchema(ctx context.Context, table string) error {
	if err := store.client.Del(ctx, constants.KeyPrefixSchema+table).Err(); err != nil {
		return fmt.Errorf("controlplane: delete schema: %w", err)
	}
	return nil
}

// GetOpenAPI implements [Store].
func (store *RedisStore) GetOpenAPI(ctx context.Context) (*OpenAPIPayload, bool, error) {
	raw, err := store.client.Get(ctx, constants.KeyOpenAPI).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("controlplane: get openapi: %w", err)
	}

	payload := &OpenAPIPayload{}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, false, fmt.Errorf("controlplane: decode openapi: %w", err)
	}
	return payload, true, nil
}

// PutOpenAPI implements [Store].
func (store *RedisStore) PutOpenAPI(ctx context.Context, payload *OpenAPIPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("controlplane: encode openapi: %w", err)
	}
	if err := store.client.Set(ctx, constants.KeyOpenAPI, raw, 0).Err(); err != nil {
		return fmt.Errorf("controlplane: put openapi: %w", err)
	}
	return nil
}
