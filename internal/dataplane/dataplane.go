// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package dataplane is the edge-style response cache for read endpoints.

Entries are keyed by a synthetic URL that embeds the table's current version
token and the canonical query fingerprint:

	https://<host>/<version>/<table>/<fingerprint>

Bumping the version after a write changes every future URL, so stale bodies
become unreachable and expire under their short TTL. The cache itself is
dumb storage: bytes in, bytes out, no knowledge of versions or queries.

Bodies read from the cache are immutable snapshots; callers serve them
as-is and never modify them.
*/
package dataplane

import (
	"context"
	"net/url"
	"strings"
)

// Cache is the data-plane surface.
//
// Match distinguishes a miss (nil, false, nil) from an I/O failure
// (nil, false, err). Callers treat failures as misses after logging.
type Cache interface {
	// Match returns the cached response body for a cache URL.
	Match(ctx context.Context, cacheURL string) ([]byte, bool, error)

	// Put stores a response body under a cache URL with the plane's TTL.
	Put(ctx context.Context, cacheURL string, body []byte) error
}

// URL builds the versioned cache URL for one query result. The fingerprint
// is percent-encoded; version tokens and table names are URL-safe already.
func URL(host, version, table, fingerprint string) string {
	return strings.TrimSuffix(host, "/") + "/" + version + "/" + table + "/" + url.PathEscape(fingerprint)
}

// Disabled is the no-op cache used when no binding is configured: every
// read misses and writes vanish, so each request reaches the database.
type Disabled struct{}

// Match implements [Cache].
func (Disabled) Match(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Put implements [Cache].
func (Disabled) Put(context.Context, string, []byte) error {
	return nil
}
