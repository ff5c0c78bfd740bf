// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package controlplane persists the gateway's authoritative versioning state.

Three kinds of keys live here:

  - version:<table> — the monotonic write-time token embedded in every
    data-plane cache URL. Bumping it makes all prior cached responses for
    the table unreachable.
  - schema:<table>  — serialized column metadata under the introspection
    token that was current when the columns were read. Lets a process
    rebuild a handler bundle without re-introspecting.
  - openapi         — the cached OpenAPI document with its global version.

The store is a plain KV abstraction: Redis in production, an in-process map
when no cache binding is configured. Failures here are never fatal to a
request; callers log and fall back to the authoritative database.
*/
package controlplane

import (
	"context"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/taibuivan/tablegate/internal/catalog"
)

// OpenAPIPayload is the cached OpenAPI document with its provenance.
type OpenAPIPayload struct {
	Spec     json.RawMessage `json:"spec"`
	Version  string          `json:"version"`
	CachedAt int64           `json:"cachedAt"`
}

// Store is the control-plane KV surface.
//
// The boolean returns distinguish "absent" from "failed": a missing key is
// (zero, false, nil), an I/O failure is (zero, false, err).
type Store interface {
	// GetVersion reads the per-table write version token.
	GetVersion(ctx context.Context, table string) (string, bool, error)

	// SetVersion writes the per-table version token verbatim.
	SetVersion(ctx context.Context, table, token string) error

	// BumpVersion replaces the token with a fresh monotonic value and
	// returns it. The new token strictly exceeds the previous one even
	// under clock regression or same-millisecond writes.
	BumpVersion(ctx context.Context, table string) (string, error)

	// GetSchema reads the cached column metadata for a table.
	GetSchema(ctx context.Context, table string) (*catalog.SchemaPayload, bool, error)

	// PutSchema stores column metadata under its introspection token.
	PutSchema(ctx context.Context, table string, payload *catalog.SchemaPayload) error

	// DeleteSchema removes the cached column metadata after drift.
	DeleteSchema(ctx context.Context, table string) error

	// GetOpenAPI reads the cached OpenAPI document.
	GetOpenAPI(ctx context.Context) (*OpenAPIPayload, bool, error)

	// PutOpenAPI stores the OpenAPI document under its global version.
	PutOpenAPI(ctx context.Context, payload *OpenAPIPayload) error
}

// NextToken derives the successor of a version token: the current
// millisecond timestamp, pushed past the previous token when the clock has
// not advanced. Tokens therefore compare strictly increasing as decimals.
func NextToken(previous string) string {
	now := time.Now().UnixMilli()
	if prev, err := strconv.ParseInt(previous, 10, 64); err == nil && prev >= now {
		return strconv.FormatInt(prev+1, 10)
	}
	return strconv.FormatInt(now, 10)
}
