package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	// CacheBackend stores the presence mapping; SettingsBackend stores
	// counters and the display option.
	CacheBackend    string
	SettingsBackend string
	RedisURL        string
	DatabaseURL     string
	SQLitePath      string

	// SnapshotBackend, when set, mirrors counters into a durable archive
	SnapshotBackend  string
	SnapshotInterval time.Duration

	PresenceTimeout time.Duration
	Timezone        string

	SessionSecret       string
	SessionCookieSecure bool
	AdminJWTSecret      string

	ExcludedPathPrefixes []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	timeout, err := getDurationEnv("PRESENCE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	interval, err := getDurationEnv("SNAPSHOT_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		AllowedOrigins:       parseList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Environment:          getEnv("ENVIRONMENT", "production"),
		CacheBackend:         strings.ToLower(getEnv("CACHE_BACKEND", BackendMemory)),
		SettingsBackend:      strings.ToLower(getEnv("SETTINGS_BACKEND", BackendMemory)),
		RedisURL:             getEnv("REDIS_URL", ""),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SQLitePath:           getEnv("SQLITE_PATH", "data/tracker.db"),
		SnapshotBackend:      strings.ToLower(getEnv("SNAPSHOT_BACKEND", "")),
		SnapshotInterval:     interval,
		PresenceTimeout:      timeout,
		Timezone:             getEnv("TIMEZONE", ""),
		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionCookieSecure:  getBoolEnv("SESSION_COOKIE_SECURE", false),
		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		ExcludedPathPrefixes: parseList(getEnv("EXCLUDED_PATH_PREFIXES", "/admin")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}

	switch c.SettingsBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("unsupported SETTINGS_BACKEND %q", c.SettingsBackend)
	}

	if (c.CacheBackend == BackendRedis || c.SettingsBackend == BackendRedis) && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis backend")
	}

	switch c.SnapshotBackend {
	case "":
	case BackendPostgres, BackendSQLite:
		if c.SnapshotBackend == c.SettingsBackend {
			return fmt.Errorf("SNAPSHOT_BACKEND must differ from SETTINGS_BACKEND")
		}
		if c.SnapshotInterval <= 0 {
			return fmt.Errorf("SNAPSHOT_INTERVAL must be positive, got %s", c.SnapshotInterval)
		}
	default:
		return fmt.Errorf("unsupported SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	if c.uses(BackendPostgres) && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}
	if c.uses(BackendSQLite) && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
	}

	// Last-seen times are stored in whole seconds
	if c.PresenceTimeout < time.Second || c.PresenceTimeout%time.Second != 0 {
		return fmt.Errorf("PRESENCE_TIMEOUT must be a whole number of seconds, got %s", c.PresenceTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) uses(backend string) bool {
	return c.SettingsBackend == backend || c.SnapshotBackend == backend
}

// Location resolves Timezone, defaulting to the server's local zone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AdminEnabled reports whether the settings endpoints can authenticate anyone
func (c *Config) AdminEnabled() bool {
	return c.AdminJWTSecret != ""
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseList parses a comma-separated value into a slice
func parseList(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	// Bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
