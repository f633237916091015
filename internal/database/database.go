// Package database handles database connections and migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/erasure-api/internal/database/migrations"
)

// Options configures optional Turso embedded-replica sync.
type Options struct {
	TursoURL       string
	TursoAuthToken string
}

// New opens a libsql database.
//   - Local file: dsn "file:erasure.db"
//   - Embedded replica: a local file synced with Turso when both Turso options are set
//   - libsql server: dsn "http://127.0.0.1:8080"
func New(dsn string, opts Options) (*sql.DB, error) {
	var db *sql.DB

	if opts.TursoURL != "" && opts.TursoAuthToken != "" {
		dbPath := strings.TrimPrefix(dsn, "file:")
		dbPath = strings.Split(dbPath, "?")[0]

		connector, err := libsql.NewEmbeddedReplicaConnector(dbPath, opts.TursoURL,
			libsql.WithAuthToken(opts.TursoAuthToken),
			libsql.WithReadYourWrites(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Turso connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	// cascade_jobs rows are removed with their deletion request.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate applies pending schema migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(ctx, db, logger)
}

// SchemaVersion returns the most recently applied migration timestamp.
func SchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	return migrations.LatestVersion(ctx, db)
}
