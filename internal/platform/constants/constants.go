// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Cache Taxonomy: Key prefixes used by the control and data planes.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "tablegate-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// DetachedTaskTimeout bounds background work (SWR refresh, drift checks)
	// that outlives the request which scheduled it.
	DetachedTaskTimeout = 15 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderContentType   = "Content-Type"

	// HeaderXCacheControl opts a single request out of cache reads.
	// The only recognised value is "no-cache".
	HeaderXCacheControl = "X-Cache-Control"

	// CacheControlNoCache is the value of HeaderXCacheControl that bypasses
	// both the code-plane and data-plane reads for one request.
	CacheControlNoCache = "no-cache"
)

// # JSON Field Identifiers

const (
	FieldError         = "error"
	FieldMissingFields = "missingFields"
	FieldStatus        = "status"
	FieldChecks        = "checks"
)

// # Cache Taxonomy (Control Plane)

const (
	// KeyPrefixVersion precedes the per-table monotonic version token.
	KeyPrefixVersion = "version:"

	// KeyPrefixSchema precedes the per-table serialized column metadata.
	KeyPrefixSchema = "schema:"

	// KeyOpenAPI holds the cached OpenAPI document with its global version.
	KeyOpenAPI = "openapi"
)

// # Query Grammar

const (
	// EmptyFingerprint is the canonical fingerprint of a query with no
	// filters, sort, pagination, or projection.
	EmptyFingerprint = "list"
)
