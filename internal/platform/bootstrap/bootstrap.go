// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package bootstrap seeds a demo schema through golang-migrate.
//
// # Architecture
//
// The gateway itself never migrates anything: tables appear and disappear
// underneath it and introspection keeps up. Bootstrap exists for local
// development and integration environments, where BOOTSTRAP_PATH points at
// a directory of .sql files that create the demo tables before traffic
// is served. Production deployments leave it unset.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers the "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Apply runs all pending UP migrations found under dir against the database.
//
// # Parameters
//   - dsn: A libpq-compatible DSN or postgres:// URL.
//   - dir: Filesystem path to the migrations directory.
//   - logger: Structured logger for bootstrap events.
func Apply(dsn string, dir string, logger *slog.Logger) error {
	migrator, err := migrate.New("file://"+dir, pgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("bootstrap: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			logger.Error("bootstrap_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			logger.Error("bootstrap_db_close_failed", slog.Any("error", dbError))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("bootstrap: failed to read current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("bootstrap: schema is dirty at version %d (manual intervention required)", version)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("bootstrap_already_up_to_date", slog.Int("version", int(version)))
			return nil
		}
		return fmt.Errorf("bootstrap: up failed: %w", err)
	}

	applied, _, _ := migrator.Version()
	logger.Info("bootstrap_applied",
		slog.Int("from_version", int(version)),
		slog.Int("to_version", int(applied)),
	)

	return nil
}

// pgx5URL rewrites postgres:// style DSNs to the pgx5:// scheme that
// golang-migrate's pgx/v5 driver registers.
func pgx5URL(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "pgx5://"):
		return dsn
	case strings.HasPrefix(dsn, "postgres://"):
		return "pgx5://" + strings.TrimPrefix(dsn, "postgres://")
	case strings.HasPrefix(dsn, "postgresql://"):
		return "pgx5://" + strings.TrimPrefix(dsn, "postgresql://")
	default:
		return dsn
	}
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
