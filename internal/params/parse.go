// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package params

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/pkg/query"
	"github.com/taibuivan/tablegate/pkg/slice"
)

// Reserved parameter names, per verb.
var (
	reservedAlways = map[string]struct{}{
		"order_by": {},
		"limit":    {},
		"offset":   {},
		"select":   {},
	}
	reservedInsert = map[string]struct{}{
		"returning":          {},
		"on_conflict":        {},
		"on_conflict_action": {},
		"on_conflict_update": {},
	}
	reservedUpdate = map[string]struct{}{
		"returning": {},
	}
	reservedDelete = map[string]struct{}{
		"returning":   {},
		"hard_delete": {},
	}
)

// # Verb Parsers

// ParseList parses a read query string.
func ParseList(values url.Values, table *catalog.Table) *ListQuery {
	q := &ListQuery{
		Filters: parseFilters(values, table, reservedAlways),
		Sort:    parseSort(values.Get("order_by"), table),
		Select:  parseProjection(values.Get("select"), table),
	}

	// limit must be positive, offset non-negative; invalid values are dropped.
	if n, ok := query.Int(values.Get("limit")); ok && n > 0 {
		q.Limit = &n
	}
	if n, ok := query.Int(values.Get("offset")); ok && n >= 0 {
		q.Offset = &n
	}

	return q
}

// ParseInsert parses an insert query string.
func ParseInsert(values url.Values, table *catalog.Table) *Insert {
	return &Insert{
		Returning:  parseProjection(values.Get("returning"), table),
		OnConflict: parseOnConflict(values, table),
	}
}

// ParseUpdate parses an update query string.
func ParseUpdate(values url.Values, table *catalog.Table) *Update {
	return &Update{
		Filters:   parseFilters(values, table, reservedUpdate),
		Returning: parseProjection(values.Get("returning"), table),
	}
}

// ParseDelete parses a delete query string.
func ParseDelete(values url.Values, table *catalog.Table) *Delete {
	return &Delete{
		Filters:    parseFilters(values, table, reservedDelete),
		Returning:  parseProjection(values.Get("returning"), table),
		HardDelete: query.Flag(values.Get("hard_delete")),
	}
}

// # Filters

// parseFilters interprets every non-reserved parameter as field[__op].
// Unknown fields are dropped, each occurrence of a repeated key becomes its
// own predicate, and the result is canonically ordered.
func parseFilters(values url.Values, table *catalog.Table, verbReserved map[string]struct{}) []Filter {
	var filters []Filter

	for key, occurrences := range values {
		if _, ok := reservedAlways[key]; ok {
			continue
		}
		if _, ok := verbReserved[key]; ok {
			continue
		}

		field, op := splitFilterKey(key)
		column, ok := table.Column(field)
		if !ok {
			continue
		}

		for _, raw := range occurrences {
			filter, ok := buildFilter(column, op, raw)
			if ok {
				filters = append(filters, filter)
			}
		}
	}

	sort.Slice(filters, func(i, j int) bool {
		a, b := filters[i], filters[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Op != b.Op {
			return a.Op < b.Op
		}
		return a.Raw < b.Raw
	})

	return filters
}

// splitFilterKey separates field__op keys. A suffix that is not a known
// operator makes the entire key the field name with equality semantics.
func splitFilterKey(key string) (string, Op) {
	if idx := strings.LastIndex(key, "__"); idx > 0 {
		if op, ok := ParseOp(key[idx+2:]); ok {
			return key[:idx], op
		}
	}
	return key, OpEq
}

// buildFilter coerces the raw value by operator and column kind.
func buildFilter(column catalog.Column, op Op, raw string) (Filter, bool) {
	filter := Filter{Field: column.Name, Op: op, Raw: raw}

	switch op {
	case OpIsNull:
		filter.Value = query.Flag(raw)

	case OpIn:
		parts := query.StringSlice(raw)
		if len(parts) == 0 {
			return Filter{}, false
		}
		coerced := make([]any, len(parts))
		for i, part := range parts {
			coerced[i] = coerceScalar(column.Kind(), part)
		}
		filter.Value = coerced

	default:
		filter.Value = coerceScalar(column.Kind(), raw)
	}

	return filter, true
}

// coerceScalar converts one raw value according to the column kind. Failed
// numeric parses keep the raw string so the database reports the type error.
func coerceScalar(kind catalog.Kind, raw string) any {
	switch kind {
	case catalog.KindInteger:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		return raw
	case catalog.KindNumeric:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	case catalog.KindBoolean:
		return query.Flag(raw)
	default:
		return raw
	}
}

// # Sort, Projection, Conflict

// parseSort reads the comma-separated order_by directive list. A leading
// '-' flips a directive to descending. Unknown fields are dropped and the
// given order is preserved.
func parseSort(raw string, table *catalog.Table) []SortKey {
	var keys []SortKey
	for _, term := range query.StringSlice(raw) {
		desc := strings.HasPrefix(term, "-")
		field := strings.TrimPrefix(term, "-")
		if !table.HasColumn(field) {
			continue
		}
		keys = append(keys, SortKey{Field: field, Desc: desc})
	}
	return keys
}

// parseProjection reads a comma-separated column list, drops unknown fields,
// and canonicalizes (sorted, deduplicated). Empty result means absent.
func parseProjection(raw string, table *catalog.Table) []string {
	fields := slice.Unique(slice.Filter(query.StringSlice(raw), table.HasColumn))
	sort.Strings(fields)
	return fields
}

// parseOnConflict assembles the optional conflict clause of an insert.
// An unknown conflict column drops the whole clause. An explicit
// on_conflict_action=nothing wins over on_conflict_update; an update list
// with no valid column falls back to nothing.
func parseOnConflict(values url.Values, table *catalog.Table) *OnConflict {
	column := values.Get("on_conflict")
	if column == "" || !table.HasColumn(column) {
		return nil
	}

	clause := &OnConflict{Column: column, Action: ActionNothing}

	if values.Get("on_conflict_action") == string(ActionNothing) {
		return clause
	}

	if updateList := values.Get("on_conflict_update"); updateList != "" {
		valid := slice.Unique(slice.Filter(query.StringSlice(updateList), table.HasColumn))
		if len(valid) > 0 {
			clause.Action = ActionUpdate
			clause.UpdateColumns = valid
		}
	}

	return clause
}
