package repository

import (
	"context"
	"time"
)

// Logical key names shared by all backends
const (
	KeyPresence      = "presence:sessions"
	KeyVisitorTotal  = "visitor:total"
	KeyVisitorDaily  = "visitor:daily"
	KeyDisplayOption = "display_option"
)

// CacheRepository is the short-lived store holding the presence mapping
type CacheRepository interface {
	// GetCached returns the stored value and whether it was present
	GetCached(ctx context.Context, key string) ([]byte, bool, error)

	// SetCached stores value under key, letting the store drop it after ttl
	SetCached(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SettingsRepository is the durable store holding counters and settings
type SettingsRepository interface {
	// GetSetting returns the stored string or def when the key is absent
	GetSetting(ctx context.Context, key, def string) (string, error)

	// SetSetting stores a string value with no expiry
	SetSetting(ctx context.Context, key, value string) error

	// Counter returns a scalar counter, zero when absent
	Counter(ctx context.Context, key string) (int64, error)

	// IncrementCounter atomically adds delta to a scalar counter and returns the new value
	IncrementCounter(ctx context.Context, key string, delta int64) (int64, error)

	// CounterFields returns every field of a counter mapping
	CounterFields(ctx context.Context, key string) (map[string]int64, error)

	// IncrementCounterField atomically adds delta to one field of a counter mapping,
	// creating it at delta when absent, and returns the new value
	IncrementCounterField(ctx context.Context, key, field string, delta int64) (int64, error)

	// RaiseCounter atomically sets a scalar counter to value unless it already
	// holds more, and returns the resulting value. Repeating a call is a no-op.
	RaiseCounter(ctx context.Context, key string, value int64) (int64, error)

	// RaiseCounterField is RaiseCounter for one field of a counter mapping
	RaiseCounterField(ctx context.Context, key, field string, value int64) (int64, error)
}

// Backend is the lifecycle shared by every store implementation
type Backend interface {
	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the backend's resources
	Close() error
}

// Store can serve both roles (memory, Redis)
type Store interface {
	CacheRepository
	SettingsRepository
	Backend
}

// DurableStore only serves settings and counters (Postgres, SQLite)
type DurableStore interface {
	SettingsRepository
	Backend
}

// Repositories aggregates the two stores the tracker runs against
type Repositories struct {
	Cache    CacheRepository
	Settings SettingsRepository
}
