// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package catalog models database tables as immutable descriptors.

A Table Descriptor is built once from introspected column metadata and then
shared, by reference, with every handler compiled for that table. Descriptors
are never mutated; schema drift produces a replacement descriptor under a new
version token.

Concepts:

  - Column: name, declared SQL type, nullability.
  - Kind: a coarse classification of SQL types driving value coercion,
    OpenAPI schemas, and soft-delete stamping.
  - Token: the catalog-row transaction ID (xmin) captured at introspection
    time, used to detect schema drift.
*/
package catalog

import (
	"strings"

	"github.com/taibuivan/tablegate/pkg/slice"
)

// # Type Classification

// Kind is a coarse classification of PostgreSQL data types.
type Kind int

const (
	// KindText is the fallback for every type without special handling.
	KindText Kind = iota
	KindInteger
	KindNumeric
	KindBoolean
	KindTimestamp
	KindUUID
	KindJSON
)

// KindOf classifies a declared data_type string from information_schema.
func KindOf(dataType string) Kind {
	switch strings.ToLower(dataType) {
	case "integer", "bigint", "smallint":
		return KindInteger
	case "numeric", "real", "double precision":
		return KindNumeric
	case "boolean":
		return KindBoolean
	case "timestamp without time zone", "timestamp with time zone", "date":
		return KindTimestamp
	case "uuid":
		return KindUUID
	case "json", "jsonb":
		return KindJSON
	default:
		return KindText
	}
}

// # Descriptors

// Column describes one table column as introspected.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Kind returns the coarse type classification of the column.
func (c Column) Kind() Kind {
	return KindOf(c.DataType)
}

// Table is an immutable descriptor of one database table.
//
// PrimaryKey and SoftDelete are empty strings when the table has no column
// matching the configured conventions.
type Table struct {
	Name    string
	Schema  string
	Token   string
	Columns []Column

	PrimaryKey string
	SoftDelete string
}

// Options configures descriptor conventions during Build.
type Options struct {
	// Schema is the PostgreSQL schema the table lives in.
	Schema string
	// PrimaryKey is the column name treated as the primary key when present.
	PrimaryKey string
	// SoftDeleteCandidates are checked in column order; the first column
	// whose name appears in this set becomes the soft-delete marker.
	SoftDeleteCandidates []string
}

// Build assembles an immutable Table descriptor from introspected columns.
func Build(name string, columns []Column, token string, opts Options) *Table {
	table := &Table{
		Name:    name,
		Schema:  opts.Schema,
		Token:   token,
		Columns: columns,
	}

	candidates := make(map[string]struct{}, len(opts.SoftDeleteCandidates))
	for _, c := range opts.SoftDeleteCandidates {
		candidates[c] = struct{}{}
	}

	for _, column := range columns {
		if table.PrimaryKey == "" && column.Name == opts.PrimaryKey {
			table.PrimaryKey = column.Name
		}
		if table.SoftDelete == "" {
			if _, ok := candidates[column.Name]; ok {
				table.SoftDelete = column.Name
			}
		}
	}

	return table
}

// # Descriptor Queries

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, column := range t.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns all column names in ordinal order.
func (t *Table) ColumnNames() []string {
	return slice.Map(t.Columns, func(c Column) string { return c.Name })
}

// MissingRequired returns, in ordinal order, the names of non-nullable
// non-primary-key columns absent from a full-replace body.
func (t *Table) MissingRequired(body map[string]any) []string {
	var missing []string
	for _, column := range t.Columns {
		if column.Nullable || column.Name == t.PrimaryKey {
			continue
		}
		if _, present := body[column.Name]; !present {
			missing = append(missing, column.Name)
		}
	}
	return missing
}

// # Control-Plane Payload

// SchemaPayload is the serialized column metadata persisted in the control
// plane under "schema:<table>". Its Version is the introspection token that
// was current when the columns were read.
type SchemaPayload struct {
	Version string   `json:"version"`
	Columns []Column `json:"columns"`
}
