// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tablegate/internal/platform/apperr"
	"github.com/taibuivan/tablegate/internal/platform/dberr"
)

/*
TestWrap_StatusPolicy: the only 404s are an empty result set and a dropped
table; every other execution error is a 500, constraint violations included.
A duplicate key on a plain insert is not a client error the API advertises.
*/
func TestWrap_StatusPolicy(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no_rows", pgx.ErrNoRows, http.StatusNotFound},
		{"dropped_table", &pgconn.PgError{Code: pgerrcode.UndefinedTable}, http.StatusNotFound},
		{"unique_violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, http.StatusInternalServerError},
		{"foreign_key_violation", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, http.StatusInternalServerError},
		{"not_null_violation", &pgconn.PgError{Code: pgerrcode.NotNullViolation}, http.StatusInternalServerError},
		{"bad_literal_cast", &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}, http.StatusInternalServerError},
		{"undefined_column", &pgconn.PgError{Code: pgerrcode.UndefinedColumn}, http.StatusInternalServerError},
		{"connection_failure", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, http.StatusInternalServerError},
		{"plain_error", errors.New("scan failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := dberr.Wrap(tt.err, "insert users")
			appError := apperr.As(wrapped)
			require.NotNil(t, appError)
			assert.Equal(t, tt.wantStatus, appError.HTTPStatus)
		})
	}
}

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, dberr.Wrap(nil, "select users"))
}

/*
TestWrap_HidesDatabaseDetail: the 500 body is generic; the SQLSTATE and the
action tag survive only in the cause chain for server-side logs.
*/
func TestWrap_HidesDatabaseDetail(t *testing.T) {
	cause := &pgconn.PgError{Code: pgerrcode.UniqueViolation, Message: "duplicate key value violates unique constraint"}
	appError := apperr.As(dberr.Wrap(cause, "insert users"))
	require.NotNil(t, appError)

	assert.Equal(t, "An unexpected error occurred", appError.Message)
	assert.NotContains(t, appError.Message, "duplicate key")
	assert.Contains(t, appError.Cause.Error(), "insert users")

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(appError.Cause, &pgErr))
}
