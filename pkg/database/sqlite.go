package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// sqlite driver
	_ "modernc.org/sqlite"
)

// SQLiteDB wraps a single-file SQLite database
type SQLiteDB struct {
	*sql.DB
	path string
}

// NewSQLiteDB opens (creating if needed) the database at path and applies pragmas
func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer keeps counter upserts serialized without SQLITE_BUSY retries
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return &SQLiteDB{DB: sqlDB, path: path}, nil
}

// Path returns the database file path
func (db *SQLiteDB) Path() string {
	return db.path
}

// Health checks the database connection
func (db *SQLiteDB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}
