// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// CodeCache is the process-local code plane: table name → compiled bundle.
//
// Reads outnumber writes by orders of magnitude, so a read-biased RWMutex
// guards the map. Writers swap whole bundles; readers observe either the
// old or the new one, never a partially built router. The lock is never
// held across I/O — building happens outside and only the final swap takes
// the write lock.
type CodeCache struct {
	mu      sync.RWMutex
	entries map[string]*Bundle

	group singleflight.Group
}

// NewCodeCache constructs an empty code plane.
func NewCodeCache() *CodeCache {
	return &CodeCache{entries: make(map[string]*Bundle)}
}

// Get returns the cached bundle for a table.
func (cache *CodeCache) Get(table string) (*Bundle, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	bundle, ok := cache.entries[table]
	return bundle, ok
}

// Put stores (or replaces) the bundle for a table.
func (cache *CodeCache) Put(table string, bundle *Bundle) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[table] = bundle
}

// Drop removes the bundle for a table after drift was confirmed.
func (cache *CodeCache) Drop(table string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, table)
}

// Len reports the number of cached bundles.
func (cache *CodeCache) Len() int {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.entries)
}

// Build collapses concurrent rebuilds of the same table into one build call
// and stores the winner. Builds are idempotent, so last-write-wins is safe
// for the callers that raced past the single-flight window.
func (cache *CodeCache) Build(table string, build func() (*Bundle, error)) (*Bundle, error) {
	value, err, _ := cache.group.Do(table, func() (any, error) {
		bundle, err := build()
		if err != nil {
			return nil, err
		}
		cache.Put(table, bundle)
		return bundle, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Bundle), nil
}
