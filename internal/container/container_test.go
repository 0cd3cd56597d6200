package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-tracker/internal/config"
	"live-tracker/internal/repository"
	"live-tracker/pkg/logger"
)

func baseConfig() *config.Config {
	return &config.Config{
		Environment:     "test",
		CacheBackend:    config.BackendMemory,
		SettingsBackend: config.BackendMemory,
		PresenceTimeout: 5 * time.Minute,
		Timezone:        "UTC",
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name         string
		mutate       func(c *config.Config)
		sameStore    bool
		expectError  bool
		cacheIsRedis bool
	}{
		{
			name:      "memory for both roles",
			mutate:    func(c *config.Config) {},
			sameStore: true,
		},
		{
			name: "redis for both roles",
			mutate: func(c *config.Config) {
				c.CacheBackend = config.BackendRedis
				c.SettingsBackend = config.BackendRedis
				c.RedisURL = "redis://" + mr.Addr()
			},
			sameStore:    true,
			cacheIsRedis: true,
		},
		{
			name: "redis cache with sqlite settings",
			mutate: func(c *config.Config) {
				c.CacheBackend = config.BackendRedis
				c.SettingsBackend = config.BackendSQLite
				c.RedisURL = "redis://" + mr.Addr()
				c.SQLitePath = filepath.Join(t.TempDir(), "tracker.db")
			},
			cacheIsRedis: true,
		},
		{
			name: "memory cache with redis settings",
			mutate: func(c *config.Config) {
				c.SettingsBackend = config.BackendRedis
				c.RedisURL = "redis://" + mr.Addr()
			},
		},
		{
			name: "invalid redis url",
			mutate: func(c *config.Config) {
				c.CacheBackend = config.BackendRedis
				c.RedisURL = "invalid://redis-url"
			},
			expectError: true,
		},
		{
			name:        "unknown settings backend",
			mutate:      func(c *config.Config) { c.SettingsBackend = "mongo" },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			c, err := New(context.Background(), cfg, logger.Nop())
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, c.Close()) })

			require.NotNil(t, c.Services)
			require.NotNil(t, c.Services.Tracker)

			backends := c.Backends()
			require.Len(t, backends, 2)
			assert.Equal(t, tt.sameStore, backends["cache"] == backends["settings"])

			_, isRedis := c.Repositories.Cache.(*repository.RedisStore)
			assert.Equal(t, tt.cacheIsRedis, isRedis)

			for role, b := range backends {
				assert.NoError(t, b.Ping(context.Background()), role)
			}
		})
	}
}

func TestNew_ServicesShareTheConfiguredStores(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()
	cfg.PresenceTimeout = time.Minute

	c, err := New(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Services.Tracker.TrackPageView(ctx, "token-1"))

	live, err := c.Services.Presence.LiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, live)

	total, err := c.Repositories.Settings.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestNew_WithSnapshotArchive(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()
	cfg.SnapshotBackend = config.BackendSQLite
	cfg.SnapshotInterval = time.Hour
	cfg.SQLitePath = filepath.Join(t.TempDir(), "archive.db")

	c, err := New(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NotNil(t, c.Snapshot)
	assert.Len(t, c.Backends(), 3)

	require.NoError(t, c.Snapshot.Start(ctx))
	require.NoError(t, c.Services.Visits.RecordVisit(ctx))
	require.NoError(t, c.Snapshot.Stop(ctx))
	require.NoError(t, c.Close())

	// A fresh memory store is seeded from the archive on start
	c, err = New(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Snapshot.Start(ctx))
	defer c.Snapshot.Stop(ctx)

	total, err := c.Services.Visits.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
