// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sqlgen

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is one result row keyed by column name, ready for JSON encoding.
type Row = map[string]any

// Runner executes synthesized statements and returns materialized rows.
//
// Tests substitute an in-memory implementation; production wiring uses
// [PoolRunner] over the shared pgx pool.
type Runner interface {
	Query(ctx context.Context, stmt Statement) ([]Row, error)
}

// PoolRunner executes statements against a pgx connection pool, borrowing a
// connection per query.
type PoolRunner struct {
	pool *pgxpool.Pool
}

// NewRunner constructs a pool-backed statement runner.
func NewRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

// Query implements [Runner]. Every statement carries RETURNING or is a
// SELECT, so mutations and reads share one execution path.
func (runner *PoolRunner) Query(ctx context.Context, stmt Statement) ([]Row, error) {
	rows, err := runner.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("sqlgen: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []Row{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("sqlgen: read row: %w", err)
		}
		row := make(Row, len(fields))
		for i, field := range fields {
			row[field.Name] = jsonValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlgen: drain rows: %w", err)
	}

	return results, nil
}

// jsonValue converts pgx driver values whose default JSON encoding would be
// wrong for API clients. Timestamps serialize as ISO-8601 UTC; uuid columns
// arrive as raw 16-byte arrays and are rendered canonically.
func jsonValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
	default:
		return value
	}
}
