// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package params parses request query strings into typed, canonical values.

One grammar serves four verbs: reads parse into [ListQuery], inserts into
[Insert], updates into [Update], deletes into [Delete]. Parsing is pure (no
I/O), takes the owning [catalog.Table], and never fails: everything invalid
is silently dropped, so a parsed value only ever references columns that
exist on the descriptor.

Filter grammar:

	<field>            equality, e.g.  ?email=a@x
	<field>__<op>      explicit op,    e.g.  ?age__gte=21
	ops: eq, gt, gte, lt, lte, like, ilike, in, isnull

Reserved parameter names are never treated as filters: order_by, limit,
offset and select on every verb; returning, on_conflict, on_conflict_action,
on_conflict_update on insert; returning on update; returning and hard_delete
on delete.
*/
package params

import (
	"github.com/taibuivan/tablegate/internal/catalog"
)

// Op is a filter operator.
type Op string

const (
	OpEq     Op = "eq"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
	OpLike   Op = "like"
	OpIlike  Op = "ilike"
	OpIn     Op = "in"
	OpIsNull Op = "isnull"
)

// ParseOp resolves an operator suffix. Unrecognised suffixes return false,
// which makes the whole key a (likely unknown) field name.
func ParseOp(s string) (Op, bool) {
	switch Op(s) {
	case OpEq, OpGt, OpGte, OpLt, OpLte, OpLike, OpIlike, OpIn, OpIsNull:
		return Op(s), true
	default:
		return "", false
	}
}

// Filter is one parsed predicate. Field always names a column present on
// the owning descriptor.
//
// Raw preserves the client's text for fingerprinting and re-serialization.
// Value carries the type-coerced form handed to the SQL synthesizer: a bool
// for isnull, a []any for in, otherwise a scalar coerced by column kind.
type Filter struct {
	Field string
	Op    Op
	Raw   string
	Value any
}

// SortKey is one order_by directive.
type SortKey struct {
	Field string
	Desc  bool
}

// ListQuery is the parsed form of a read query string.
//
// Filters are held in canonical order (sorted by field, operator, raw value)
// and Select is sorted and deduplicated, so two permutations of the same
// query string parse to identical values.
type ListQuery struct {
	Filters []Filter
	Sort    []SortKey
	Limit   *int
	Offset  *int
	Select  []string
}

// ConflictAction selects the ON CONFLICT arm of an insert.
type ConflictAction string

const (
	ActionNothing ConflictAction = "nothing"
	ActionUpdate  ConflictAction = "update"
)

// OnConflict describes the conflict clause of an insert.
type OnConflict struct {
	Column        string
	Action        ConflictAction
	UpdateColumns []string
}

// Insert is the parsed form of an insert query string.
type Insert struct {
	Returning  []string
	OnConflict *OnConflict
}

// Update is the parsed form of an update query string.
type Update struct {
	Filters   []Filter
	Returning []string
}

// Delete is the parsed form of a delete query string.
type Delete struct {
	Filters    []Filter
	Returning  []string
	HardDelete bool
}

// PKFilter synthesizes the single equality filter used by /{id} routes.
// The raw path segment is coerced by the primary key's column kind, so a
// numeric ID string becomes a number when the parse succeeds and stays a
// string otherwise.
func PKFilter(table *catalog.Table, id string) Filter {
	kind := catalog.KindText
	if column, ok := table.Column(table.PrimaryKey); ok {
		kind = column.Kind()
	}
	return Filter{
		Field: table.PrimaryKey,
		Op:    OpEq,
		Raw:   id,
		Value: coerceScalar(kind, id),
	}
}
