// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package controlplane_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/controlplane"
)

// stores builds one instance of every Store implementation so the contract
// tests run against both the in-process and the Redis-backed planes.
func stores(t *testing.T) map[string]controlplane.Store {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]controlplane.Store{
		"memory": controlplane.NewMemoryStore(),
		"redis":  controlplane.NewRedisStore(client),
	}
}

/*
TestStore_VersionLifecycle: absent reads, explicit writes and monotonic bumps
behave identically across implementations.
*/
func TestStore_VersionLifecycle(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.GetVersion(ctx, "users")
			require.NoError(t, err)
			assert.False(t, ok, "fresh store must report the key absent")

			require.NoError(t, store.SetVersion(ctx, "users", "900135"))

			token, ok, err := store.GetVersion(ctx, "users")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "900135", token)

			// Tables are isolated.
			_, ok, err = store.GetVersion(ctx, "orders")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

/*
TestStore_BumpVersion: repeated bumps produce strictly increasing tokens even
when they land within the same millisecond.
*/
func TestStore_BumpVersion(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			previous := int64(0)
			for i := 0; i < 5; i++ {
				token, err := store.BumpVersion(ctx, "users")
				require.NoError(t, err)

				value, err := strconv.ParseInt(token, 10, 64)
				require.NoError(t, err)
				assert.Greater(t, value, previous)
				previous = value
			}

			// The bumped token is the readable one.
			token, ok, err := store.GetVersion(ctx, "users")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, strconv.FormatInt(previous, 10), token)
		})
	}
}

/*
TestStore_SchemaLifecycle: put, read back, delete.
*/
func TestStore_SchemaLifecycle(t *testing.T) {
	ctx := context.Background()

	payload := &catalog.SchemaPayload{
		Version: "900135",
		Columns: []catalog.Column{
			{Name: "id", DataType: "integer", Nullable: false},
			{Name: "name", DataType: "text", Nullable: true},
		},
	}

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.GetSchema(ctx, "users")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.PutSchema(ctx, "users", payload))

			cached, ok, err := store.GetSchema(ctx, "users")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, payload, cached)

			require.NoError(t, store.DeleteSchema(ctx, "users"))

			_, ok, err = store.GetSchema(ctx, "users")
			require.NoError(t, err)
			assert.False(t, ok)

			// Deleting an absent schema is not an error.
			assert.NoError(t, store.DeleteSchema(ctx, "users"))
		})
	}
}

/*
TestStore_OpenAPI: the document round-trips with its version and timestamp.
*/
func TestStore_OpenAPI(t *testing.T) {
	ctx := context.Background()

	payload := &controlplane.OpenAPIPayload{
		Spec:     []byte(`{"openapi":"3.0.3"}`),
		Version:  "9f2b",
		CachedAt: 1756100000000,
	}

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.GetOpenAPI(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.PutOpenAPI(ctx, payload))

			cached, ok, err := store.GetOpenAPI(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, payload, cached)
		})
	}
}

/*
TestNextToken: derivation is time-based but never regresses past a previous
token, including garbage input.
*/
func TestNextToken(t *testing.T) {
	t.Run("empty_previous_uses_clock", func(t *testing.T) {
		token, err := strconv.ParseInt(controlplane.NextToken(""), 10, 64)
		require.NoError(t, err)
		assert.Greater(t, token, int64(1_700_000_000_000))
	})

	t.Run("future_previous_is_incremented", func(t *testing.T) {
		future := "99999999999999"
		assert.Equal(t, "100000000000000", controlplane.NextToken(future))
	})

	t.Run("stale_previous_is_replaced_by_clock", func(t *testing.T) {
		token, err := strconv.ParseInt(controlplane.NextToken("1000"), 10, 64)
		require.NoError(t, err)
		assert.Greater(t, token, int64(1000))
	})

	t.Run("non_numeric_previous_is_ignored", func(t *testing.T) {
		_, err := strconv.ParseInt(controlplane.NextToken("abc"), 10, 64)
		assert.NoError(t, err)
	})
}

/*
TestBreaker_PassThrough: the circuit wrapper is transparent while the
underlying store is healthy.
*/
func TestBreaker_PassThrough(t *testing.T) {
	ctx := context.Background()
	store := controlplane.NewBreaker(controlplane.NewMemoryStore())

	require.NoError(t, store.SetVersion(ctx, "users", "1"))

	token, ok, err := store.GetVersion(ctx, "users")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", token)

	bumped, err := store.BumpVersion(ctx, "users")
	require.NoError(t, err)
	assert.NotEqual(t, "1", bumped)
}
