package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"live-tracker/pkg/database"
	apperrors "live-tracker/pkg/errors"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS tracker_settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tracker_counters (
		name  TEXT    NOT NULL,
		field TEXT    NOT NULL DEFAULT '',
		value INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (name, field)
	);
`

// SQLiteStore keeps settings and counters in a local SQLite file, much like
// an options table on a single-node install.
type SQLiteStore struct {
	db *database.SQLiteDB
}

// NewSQLiteStore creates the tables if needed and returns the store
func NewSQLiteStore(ctx context.Context, db *database.SQLiteDB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create tracker tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM tracker_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", apperrors.NewStorageError("get_setting", err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracker_settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return apperrors.NewStorageError("set_setting", err)
	}
	return nil
}

func (s *SQLiteStore) Counter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM tracker_counters WHERE name = ? AND field = ''`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewStorageError("counter", err)
	}
	return value, nil
}

func (s *SQLiteStore) IncrementCounter(ctx context.Context, key string, delta int64) (int64, error) {
	return s.increment(ctx, "increment_counter", key, "", delta)
}

func (s *SQLiteStore) CounterFields(ctx context.Context, key string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, value FROM tracker_counters WHERE name = ? AND field <> ''`, key)
	if err != nil {
		return nil, apperrors.NewStorageError("counter_fields", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var field string
		var value int64
		if err := rows.Scan(&field, &value); err != nil {
			return nil, apperrors.NewStorageError("counter_fields", err)
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("counter_fields", err)
	}
	return out, nil
}

func (s *SQLiteStore) IncrementCounterField(ctx context.Context, key, field string, delta int64) (int64, error) {
	if field == "" {
		return 0, apperrors.NewValidationError("counter field must not be empty", nil)
	}
	return s.increment(ctx, "increment_counter_field", key, field, delta)
}

func (s *SQLiteStore) increment(ctx context.Context, op, key, field string, delta int64) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tracker_counters (name, field, value) VALUES (?, ?, ?)
		ON CONFLICT (name, field) DO UPDATE SET value = tracker_counters.value + excluded.value
		RETURNING value`, key, field, delta).Scan(&value)
	if err != nil {
		return 0, apperrors.NewStorageError(op, err)
	}
	return value, nil
}

func (s *SQLiteStore) RaiseCounter(ctx context.Context, key string, value int64) (int64, error) {
	return s.raise(ctx, "raise_counter", key, "", value)
}

func (s *SQLiteStore) RaiseCounterField(ctx context.Context, key, field string, value int64) (int64, error) {
	if field == "" {
		return 0, apperrors.NewValidationError("counter field must not be empty", nil)
	}
	return s.raise(ctx, "raise_counter_field", key, field, value)
}

func (s *SQLiteStore) raise(ctx context.Context, op, key, field string, value int64) (int64, error) {
	var result int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tracker_counters (name, field, value) VALUES (?, ?, ?)
		ON CONFLICT (name, field) DO UPDATE SET value = MAX(tracker_counters.value, excluded.value)
		RETURNING value`, key, field, value).Scan(&result)
	if err != nil {
		return 0, apperrors.NewStorageError(op, err)
	}
	return result, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.Health(ctx); err != nil {
		return apperrors.NewStorageError("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
