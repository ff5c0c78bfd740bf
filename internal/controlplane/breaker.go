// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package controlplane

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/taibuivan/tablegate/internal/catalog"
)

// Breaker wraps a [Store] in a circuit breaker.
//
// When Redis degrades, every control-plane call would otherwise eat its full
// I/O timeout before the caller falls back to the database. An open breaker
// turns that into an immediate error, so the fallback path costs nothing.
type Breaker struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps store with a consecutive-failure circuit breaker.
func NewBreaker(store Store) *Breaker {
	return &Breaker{
		inner: store,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "controlplane",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// GetVersion implements [Store].
func (b *Breaker) GetVersion(ctx context.Context, table string) (string, bool, error) {
	type result struct {
		token string
		ok    bool
	}
	value, err := b.breaker.Execute(func() (any, error) {
		token, ok, err := b.inner.GetVersion(ctx, table)
		return result{token, ok}, err
	})
	if err != nil {
		return "", false, err
	}
	r := value.(result)
	return r.token, r.ok, nil
}

// SetVersion implements [Store].
func (b *Breaker) SetVersion(ctx context.Context, table, token string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.SetVersion(ctx, table, token)
	})
	return err
}

// BumpVersion implements [Store].
func (b *Breaker) BumpVersion(ctx context.Context, table string) (string, error) {
	value, err := b.breaker.Execute(func() (any, error) {
		return b.inner.BumpVersion(ctx, table)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// GetSchema implements [Store].
func (b *Breaker) GetSchema(ctx context.Context, table string) (*catalog.SchemaPayload, bool, error) {
	type result struct {
		payload *catalog.SchemaPayload
		ok      bool
	}
	value, err := b.breaker.Execute(func() (any, error) {
		payload, ok, err := b.inner.GetSchema(ctx, table)
		return result{payload, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	r := value.(result)
	return r.payload, r.ok, nil
}

// PutSchema implements [Store].
func (b *Breaker) PutSchema(ctx context.Context, table string, payload *catalog.SchemaPayload) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.PutSchema(ctx, table, payload)
	})
	return err
}

// DeleteSchema implements [Store].
func (b *Breaker) DeleteSchema(ctx context.Context, table string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.DeleteSchema(ctx, table)
	})
	return err
}

// GetOpenAPI implements [Store].
func (b *Breaker) GetOpenAPI(ctx context.Context) (*OpenAPIPayload, bool, error) {
	type result struct {
		payload *OpenAPIPayload
		ok      bool
	}
	value, err := b.breaker.Execute(func() (any, error) {
		payload, ok, err := b.inner.GetOpenAPI(ctx)
		return result{payload, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	r := value.(result)
	return r.payload, r.ok, nil
}

// PutOpenAPI implements [Store].
func (b *Breaker) PutOpenAPI(ctx context.Context, payload *OpenAPIPayload) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.PutOpenAPI(ctx, payload)
	})
	return err
}
