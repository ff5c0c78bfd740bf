// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package controlplane

import (
	"context"
	"sync"

	"github.com/taibuivan/tablegate/internal/catalog"
)

// MemoryStore implements [Store] as an in-process map.
//
// It backs deployments without a Redis binding (the gateway keeps working,
// only the cross-process posture changes) and every test that needs a
// control plane.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string]string
	schemas  map[string]*catalog.SchemaPayload
	openapi  *OpenAPIPayload
}

// NewMemoryStore constructs an empty in-process control plane.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[string]string),
		schemas:  make(map[string]*catalog.SchemaPayload),
	}
}

// GetVersion implements [Store].
func (store *MemoryStore) GetVersion(_ context.Context, table string) (string, bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	token, ok := store.versions[table]
	return token, ok, nil
}

// SetVersion implements [Store].
func (store *MemoryStore) SetVersion(_ context.Context, table, token string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.versions[table] = token
	return nil
}

// BumpVersion implements [Store].
func (store *MemoryStore) BumpVersion(_ context.Context, table string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	token := NextToken(store.versions[table])
	store.versions[table] = token
	return token, nil
}

// GetSchema implements [Store].
func (store *MemoryStore) GetSchema(_ context.Context, table string) (*catalog.SchemaPayload, bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	payload, ok := store.schemas[table]
	return payload, ok, nil
}

// PutSchema implements [Store].
func (store *MemoryStore) PutSchema(_ context.Context, table string, payload *catalog.SchemaPayload) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.schemas[table] = payload
	return nil
}

// DeleteSchema implements [Store].
func (store *MemoryStore) DeleteSchema(_ context.Context, table string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.schemas, table)
	return nil
}

// GetOpenAPI implements [Store].
func (store *MemoryStore) GetOpenAPI(_ context.Context) (*OpenAPIPayload, bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	if store.openapi == nil {
		return nil, false, nil
	}
	return store.openapi, true, nil
}

// PutOpenAPI implements [Store].
func (store *MemoryStore) PutOpenAPI(_ context.Context, payload *OpenAPIPayload) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.openapi = payload
	return nil
}
