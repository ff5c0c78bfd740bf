// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dataplane

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a [Cache] in a circuit breaker so a degraded Redis fails
// fast to the database path instead of stalling every read on timeouts.
type Breaker struct {
	inner   Cache
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps cache with a consecutive-failure circuit breaker.
func NewBreaker(cache Cache) *Breaker {
	return &Breaker{
		inner: cache,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "dataplane",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Match implements [Cache].
func (b *Breaker) Match(ctx context.Context, cacheURL string) ([]byte, bool, error) {
	type result struct {
		body []byte
		ok   bool
	}
	value, err := b.breaker.Execute(func() (any, error) {
		body, ok, err := b.inner.Match(ctx, cacheURL)
		return result{body, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	r := value.(result)
	return r.body, r.ok, nil
}

// Put implements [Cache].
func (b *Breaker) Put(ctx context.Context, cacheURL string, body []byte) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.Put(ctx, cacheURL, body)
	})
	return err
}
