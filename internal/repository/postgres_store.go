package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"live-tracker/pkg/database"
	apperrors "live-tracker/pkg/errors"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS tracker_settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tracker_counters (
		name  TEXT   NOT NULL,
		field TEXT   NOT NULL DEFAULT '',
		value BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (name, field)
	);
`

// PostgresStore keeps settings and counters in PostgreSQL
type PostgresStore struct {
	db *database.PostgresDB
}

// NewPostgresStore creates the tables if needed and returns the store
func NewPostgresStore(ctx context.Context, db *database.PostgresDB) (*PostgresStore, error) {
	if _, err := db.Pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create tracker tables: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// GetSetting retrieves a string setting
func (r *PostgresStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	var value string
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM tracker_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return def, nil
		}
		return "", apperrors.NewStorageError("get_setting", err)
	}
	return value, nil
}

// SetSetting upserts a string setting
func (r *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO tracker_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.db.Pool.Exec(ctx, query, key, value); err != nil {
		return apperrors.NewStorageError("set_setting", err)
	}
	return nil
}

// Counter reads a scalar counter
func (r *PostgresStore) Counter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM tracker_counters WHERE name = $1 AND field = ''`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, apperrors.NewStorageError("counter", err)
	}
	return value, nil
}

// IncrementCounter atomically bumps a scalar counter
func (r *PostgresStore) IncrementCounter(ctx context.Context, key string, delta int64) (int64, error) {
	return r.increment(ctx, "increment_counter", key, "", delta)
}

// CounterFields reads every field of a counter mapping
func (r *PostgresStore) CounterFields(ctx context.Context, key string) (map[string]int64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT field, value FROM tracker_counters WHERE name = $1 AND field <> ''`, key)
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

// IncrementCounterField atomically bumps one field of a counter mapping
func (r *PostgresStore) IncrementCounterField(ctx context.Context, key, field string, delta int64) (int64, error) {
	if field == "" {
		return 0, apperrors.NewValidationError("counter field must not be empty", nil)
	}
	return r.increment(ctx, "increment_counter_field", key, field, delta)
}

// increment relies on the row lock taken by ON CONFLICT, so concurrent callers serialize
func (r *PostgresStore) increment(ctx context.Context, op, key, field string, delta int64) (int64, error) {
	query := `
		INSERT INTO tracker_counters (name, field, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, field) DO UPDATE SET value = tracker_counters.value + EXCLUDED.value
		RETURNING value
	`
	var value int64
	if err := r.db.Pool.QueryRow(ctx, query, key, field, delta).Scan(&value); err != nil {
		return 0, apperrors.NewStorageError(op, err)
	}
	return value, nil
}

// RaiseCounter lifts a scalar counter to value, never lowering it
func (r *PostgresStore) RaiseCounter(ctx context.Context, key string, value int64) (int64, error) {
	return r.raise(ctx, "raise_counter", key, "", value)
}

// RaiseCounterField lifts one field of a counter mapping to value, never lowering it
func (r *PostgresStore) RaiseCounterField(ctx context.Context, key, field string, value int64) (int64, error) {
	if field == "" {
		return 0, apperrors.NewValidationError("counter field must not be empty", nil)
	}
	return r.raise(ctx, "raise_counter_field", key, field, value)
}

func (r *PostgresStore) raise(ctx context.Context, op, key, field string, value int64) (int64, error) {
	query := `
		INSERT INTO tracker_counters (name, field, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, field) DO UPDATE SET value = GREATEST(tracker_counters.value, EXCLUDED.value)
		RETURNING value
	`
	var result int64
	if err := r.db.Pool.QueryRow(ctx, query, key, field, value).Scan(&result); err != nil {
		return 0, apperrors.NewStorageError(op, err)
	}
	return result, nil
}

func (r *PostgresStore) Ping(ctx context.Context) error {
	if err := r.db.Health(ctx); err != nil {
		return apperrors.NewStorageError("ping", err)
	}
	return nil
}

func (r *PostgresStore) Close() error {
	r.db.Close()
	return nil
}
