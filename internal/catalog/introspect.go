// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTableNotFound reports that the requested table does not exist in the
// configured schema.
var ErrTableNotFound = errors.New("catalog: table not found")

// Introspector reads column metadata and version tokens from the database.
//
// Implementations never retry; failure handling is the caller's concern.
// Drift checks in particular swallow introspection errors so a transient
// database hiccup cannot purge working handler bundles.
type Introspector interface {
	// TableToken returns the catalog-row transaction ID of the named table.
	// A missing table yields ErrTableNotFound.
	TableToken(ctx context.Context, table string) (string, error)

	// TableColumns returns the table's columns in ordinal order.
	// A missing table yields ErrTableNotFound.
	TableColumns(ctx context.Context, table string) ([]Column, error)

	// AllColumns returns every table's columns, keyed by table name.
	AllColumns(ctx context.Context) (map[string][]Column, error)

	// AllTokens returns every table's version token, keyed by table name.
	AllTokens(ctx context.Context) (map[string]string, error)
}

// tableTokenQuery reads the last-write transaction ID of the table's own
// catalog row. ALTER TABLE rewrites that row, so the value changes exactly
// when the table definition does.
const tableTokenQuery = `
	SELECT c.xmin::text
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind IN ('r', 'p')
`

const allTokensQuery = `
	SELECT c.relname, c.xmin::text
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relkind IN ('r', 'p')
	ORDER BY c.relname
`

const tableColumnsQuery = `
	SELECT column_name, data_type, is_nullable
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position
`

const allColumnsQuery = `
	SELECT table_name, column_name, data_type, is_nullable
	FROM information_schema.columns
	WHERE table_schema = $1
	ORDER BY table_name, ordinal_position
`

// PG implements Introspector against a pgx connection pool.
type PG struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPG constructs a PostgreSQL introspector bound to one schema.
func NewPG(pool *pgxpool.Pool, schema string) *PG {
	return &PG{pool: pool, schema: schema}
}

// TableToken implements Introspector.
func (pg *PG) TableToken(ctx context.Context, table string) (string, error) {
	var token string
	err := pg.pool.QueryRow(ctx, tableTokenQuery, pg.schema, table).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTableNotFound
		}
		return "", fmt.Errorf("catalog: read table token: %w", err)
	}
	return token, nil
}

// TableColumns implements Introspector.
func (pg *PG) TableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := pg.pool.Query(ctx, tableColumnsQuery, pg.schema, table)
	if err != nil {
		return nil, fmt.Errorf("catalog: read columns: %w", err)
	}
	defer rows.Close()

	columns, err := scanColumns(rows)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, ErrTableNotFound
	}
	return columns, nil
}

// AllColumns implements Introspector.
func (pg *PG) AllColumns(ctx context.Context) (map[string][]Column, error) {
	rows, err := pg.pool.Query(ctx, allColumnsQuery, pg.schema)
	if err != nil {
		return nil, fmt.Errorf("catalog: read schema columns: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]Column)
	for rows.Next() {
		var table string
		var column Column
		var nullable string
		if err := rows.Scan(&table, &column.Name, &column.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("catalog: scan schema column: %w", err)
		}
		column.Nullable = nullable == "YES"
		grouped[table] = append(grouped[table], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: read schema columns: %w", err)
	}
	return grouped, nil
}

// AllTokens implements Introspector.
func (pg *PG) AllTokens(ctx context.Context) (map[string]string, error) {
	rows, err := pg.pool.Query(ctx, allTokensQuery, pg.schema)
	if err != nil {
		return nil, fmt.Errorf("catalog: read schema tokens: %w", err)
	}
	defer rows.Close()

	tokens := make(map[string]string)
	for rows.Next() {
		var table, token string
		if err := rows.Scan(&table, &token); err != nil {
			return nil, fmt.Errorf("catalog: scan schema token: %w", err)
		}
		tokens[table] = token
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: read schema tokens: %w", err)
	}
	return tokens, nil
}

// scanColumns drains a (column_name, data_type, is_nullable) result set
// preserving ordinal order.
func scanColumns(rows pgx.Rows) ([]Column, error) {
	var columns []Column
	for rows.Next() {
		var column Column
		var nullable string
		if err := rows.Scan(&column.Name, &column.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("catalog: scan column: %w", err)
		}
		column.Nullable = nullable == "YES"
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: read columns: %w", err)
	}
	return columns, nil
}
