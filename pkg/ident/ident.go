// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ident normalizes and validates SQL identifiers taken from URLs.
//
// # Usage
//
// Table names arrive as the {table} path segment of /api/{table}/ and are
// later interpolated (quoted) into SQL and cache keys. This package is the
// single gate every external identifier passes through before that happens.
package ident

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// unquotedIdent matches the PostgreSQL unquoted-identifier charset, capped
// at the 63-byte identifier limit.
var unquotedIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Normalize canonicalizes an externally supplied identifier.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFC so visually identical Unicode forms compare equal.
// 2. Trims surrounding whitespace.
// 3. Converts to lowercase (PostgreSQL folds unquoted identifiers down).
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// Valid reports whether s is safe to use as an unquoted PostgreSQL
// identifier. Callers should Normalize first.
func Valid(s string) bool {
	return unquotedIdent.MatchString(s)
}
