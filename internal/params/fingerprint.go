// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package params

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/taibuivan/tablegate/internal/platform/constants"
)

// Fingerprint derives the canonical cache-key fragment of a list query.
//
// The format concatenates the present fragments with ';':
//
//	f[field:op:value,…];s[[-]field,…];l<limit>;o<offset>;c[field,…]
//
// Filters and projection are canonically ordered by the parser, so the
// fingerprint is permutation-invariant over both; sort directives keep their
// given order because ORDER BY precedence is semantic. A query with nothing
// set fingerprints to the literal "list".
func (q *ListQuery) Fingerprint() string {
	var parts []string

	if len(q.Filters) > 0 {
		items := make([]string, len(q.Filters))
		for i, filter := range q.Filters {
			items[i] = filter.Field + ":" + string(filter.Op) + ":" + filter.Raw
		}
		parts = append(parts, "f["+strings.Join(items, ",")+"]")
	}

	if len(q.Sort) > 0 {
		items := make([]string, len(q.Sort))
		for i, key := range q.Sort {
			if key.Desc {
				items[i] = "-" + key.Field
			} else {
				items[i] = key.Field
			}
		}
		parts = append(parts, "s["+strings.Join(items, ",")+"]")
	}

	if q.Limit != nil {
		parts = append(parts, "l"+strconv.Itoa(*q.Limit))
	}
	if q.Offset != nil {
		parts = append(parts, "o"+strconv.Itoa(*q.Offset))
	}

	if len(q.Select) > 0 {
		parts = append(parts, "c["+strings.Join(q.Select, ",")+"]")
	}

	if len(parts) == 0 {
		return constants.EmptyFingerprint
	}
	return strings.Join(parts, ";")
}

// Encode serializes the query back into URL values. ParseList of the result
// reproduces the canonical query, which is what background revalidation and
// the parser round-trip tests rely on.
func (q *ListQuery) Encode() url.Values {
	values := url.Values{}

	for _, filter := range q.Filters {
		key := filter.Field
		if filter.Op != OpEq {
			key = filter.Field + "__" + string(filter.Op)
		}
		values.Add(key, filter.Raw)
	}

	if len(q.Sort) > 0 {
		terms := make([]string, len(q.Sort))
		for i, key := range q.Sort {
			if key.Desc {
				terms[i] = "-" + key.Field
			} else {
				terms[i] = key.Field
			}
		}
		values.Set("order_by", strings.Join(terms, ","))
	}

	if q.Limit != nil {
		values.Set("limit", strconv.Itoa(*q.Limit))
	}
	if q.Offset != nil {
		values.Set("offset", strconv.Itoa(*q.Offset))
	}

	if len(q.Select) > 0 {
		values.Set("select", strings.Join(q.Select, ","))
	}

	return values
}
