// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apidoc

import (
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// GlobalVersion digests every table's introspection token into one schema
// version for the OpenAPI document. The digest is order-independent over
// the map (tables are folded in sorted order) and moves whenever any table
// is created, dropped, or altered.
func GlobalVersion(tokens map[string]string) string {
	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	sort.Strings(names)

	digest, _ := blake2b.New256(nil)
	for _, name := range names {
		digest.Write([]byte(name))
		digest.Write([]byte{'='})
		digest.Write([]byte(tokens[name]))
		digest.Write([]byte{';'})
	}

	return hex.EncodeToString(digest.Sum(nil)[:16])
}
