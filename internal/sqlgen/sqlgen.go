// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sqlgen synthesizes SQL statements from table descriptors and parsed
request parameters.

The builders are pure: they take a [catalog.Table] plus the typed output of
the params package and return a parameterized [Statement]. They are the only
place in the codebase where SQL text is produced, and they never interpolate
client values — everything client-supplied travels through the args slice.

Identifiers are always double-quoted. Filters whose field survived parsing
are guaranteed to name a descriptor column, so quoting is a formality rather
than the safety boundary; the parser is.
*/
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/params"
)

// Statement is one parameterized SQL statement ready for execution.
type Statement struct {
	SQL  string
	Args []any
}

// # SELECT

// Select composes a list query: projection, WHERE, ORDER BY, LIMIT, OFFSET.
func Select(table *catalog.Table, q *params.ListQuery) Statement {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	b.WriteString(projection(q.Select))
	b.WriteString(" FROM ")
	b.WriteString(qualified(table))

	writeWhere(&b, &args, q.Filters)
	writeOrderBy(&b, q.Sort)

	if q.Limit != nil {
		args = append(args, *q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset != nil {
		args = append(args, *q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	return Statement{SQL: b.String(), Args: args}
}

// # INSERT

// Insert composes an insert of the body, with the optional ON CONFLICT arm
// and a RETURNING clause (selective or *).
//
// The body is filtered to descriptor columns, primary key excluded, in
// ordinal column order. An empty effective column set inserts the table's
// defaults.
func Insert(table *catalog.Table, body map[string]any, p *params.Insert) Statement {
	columns, values := writeColumns(table, body)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(qualified(table))

	if len(columns) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" (")
		for i, column := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quote(column))
		}
		b.WriteString(") VALUES (")
		for i := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i+1)
		}
		b.WriteString(")")
	}

	if p.OnConflict != nil {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(quote(p.OnConflict.Column))
		b.WriteString(")")
		switch p.OnConflict.Action {
		case params.ActionUpdate:
			b.WriteString(" DO UPDATE SET ")
			for i, column := range p.OnConflict.UpdateColumns {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(quote(column))
				b.WriteString(" = EXCLUDED.")
				b.WriteString(quote(column))
			}
		default:
			b.WriteString(" DO NOTHING")
		}
	}

	writeReturning(&b, p.Returning)

	return Statement{SQL: b.String(), Args: values}
}

// # UPDATE

// Update composes an update whose SET clause is the body filtered to
// descriptor columns with the primary key excluded.
//
// The second return is false when the effective set is empty; callers must
// not issue any SQL in that case.
func Update(table *catalog.Table, body map[string]any, p *params.Update) (Statement, bool) {
	columns, values := writeColumns(table, body)
	if len(columns) == 0 {
		return Statement{}, false
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(qualified(table))
	b.WriteString(" SET ")

	args := values
	for i, column := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = $%d", quote(column), i+1)
	}

	writeWhere(&b, &args, p.Filters)
	writeReturning(&b, p.Returning)

	return Statement{SQL: b.String(), Args: args}, true
}

// # DELETE

// Delete composes a delete. When the request is not a hard delete and the
// table carries a soft-delete column, the statement becomes an UPDATE that
// stamps the marker instead: NOW() for timestamp-shaped markers, TRUE for
// boolean ones.
func Delete(table *catalog.Table, p *params.Delete) Statement {
	var b strings.Builder
	var args []any

	marker, soft := softDeleteMarker(table, p)
	if soft {
		b.WriteString("UPDATE ")
		b.WriteString(qualified(table))
		b.WriteString(" SET ")
		b.WriteString(marker)
	} else {
		b.WriteString("DELETE FROM ")
		b.WriteString(qualified(table))
	}

	writeWhere(&b, &args, p.Filters)
	writeReturning(&b, p.Returning)

	return Statement{SQL: b.String(), Args: args}
}

// softDeleteMarker returns the SET fragment of a soft delete, or false when
// the delete must be physical.
func softDeleteMarker(table *catalog.Table, p *params.Delete) (string, bool) {
	if p.HardDelete || table.SoftDelete == "" {
		return "", false
	}
	column, ok := table.Column(table.SoftDelete)
	if !ok {
		return "", false
	}
	if column.Kind() == catalog.KindBoolean {
		return quote(column.Name) + " = TRUE", true
	}
	return quote(column.Name) + " = NOW()", true
}

// # Shared Fragments

// writeColumns filters a write body down to descriptor columns, excluding
// the primary key, in ordinal column order.
func writeColumns(table *catalog.Table, body map[string]any) ([]string, []any) {
	var columns []string
	var values []any
	for _, column := range table.Columns {
		if column.Name == table.PrimaryKey {
			continue
		}
		value, present := body[column.Name]
		if !present {
			continue
		}
		columns = append(columns, column.Name)
		values = append(values, value)
	}
	return columns, values
}

// writeWhere appends the WHERE clause. Predicates are ANDed in the filters'
// canonical order.
func writeWhere(b *strings.Builder, args *[]any, filters []params.Filter) {
	wrote := false
	for _, filter := range filters {
		if wrote {
			b.WriteString(" AND ")
		} else {
			b.WriteString(" WHERE ")
			wrote = true
		}
		writePredicate(b, args, filter)
	}
}

// writePredicate appends one filter predicate.
func writePredicate(b *strings.Builder, args *[]any, filter params.Filter) {
	column := quote(filter.Field)

	switch filter.Op {
	case params.OpIsNull:
		if isNull, _ := filter.Value.(bool); isNull {
			b.WriteString(column + " IS NULL")
		} else {
			b.WriteString(column + " IS NOT NULL")
		}

	case params.OpIn:
		values, _ := filter.Value.([]any)
		b.WriteString(column + " IN (")
		for i, value := range values {
			if i > 0 {
				b.WriteString(", ")
			}
			*args = append(*args, value)
			fmt.Fprintf(b, "$%d", len(*args))
		}
		b.WriteString(")")

	default:
		*args = append(*args, filter.Value)
		fmt.Fprintf(b, "%s %s $%d", column, sqlOperator(filter.Op), len(*args))
	}
}

// sqlOperator maps a filter operator to its SQL token.
func sqlOperator(op params.Op) string {
	switch op {
	case params.OpGt:
		return ">"
	case params.OpGte:
		return ">="
	case params.OpLt:
		return "<"
	case params.OpLte:
		return "<="
	case params.OpLike:
		return "LIKE"
	case params.OpIlike:
		return "ILIKE"
	default:
		return "="
	}
}

// writeOrderBy appends the ORDER BY clause; zero directives appends nothing.
func writeOrderBy(b *strings.Builder, sort []params.SortKey) {
	for i, key := range sort {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(quote(key.Field))
		if key.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
}

// writeReturning appends the RETURNING clause: selective when fields were
// requested, * otherwise.
func writeReturning(b *strings.Builder, fields []string) {
	b.WriteString(" RETURNING ")
	b.WriteString(projection(fields))
}

// projection renders a column list, or * when empty.
func projection(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = quote(field)
	}
	return strings.Join(quoted, ", ")
}

// qualified renders the schema-qualified table name.
func qualified(table *catalog.Table) string {
	if table.Schema == "" {
		return quote(table.Name)
	}
	return quote(table.Schema) + "." + quote(table.Name)
}

// quote double-quotes one SQL identifier.
func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
