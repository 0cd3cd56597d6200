package container

import (
	"context"
	"fmt"

	"live-tracker/internal/config"
	"live-tracker/internal/repository"
	"live-tracker/internal/service"
	"live-tracker/pkg/clock"
	"live-tracker/pkg/database"
	"live-tracker/pkg/logger"
	"live-tracker/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	Clock        clock.Clock
	Repositories *repository.Repositories
	Services     *service.Services

	// Archive and Snapshot are nil unless SNAPSHOT_BACKEND is set
	Archive  repository.DurableStore
	Snapshot *service.SnapshotService

	// backends are keyed by role; one store may serve both cache and settings
	backends map[string]repository.Backend
	shared   repository.Store
}

// New creates a new dependency injection container, connecting to the
// configured cache, settings and snapshot backends.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		Logger:   log,
		Clock:    clock.NewSystem(loc),
		backends: make(map[string]repository.Backend),
	}

	if err := c.init(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"cache_backend":    cfg.CacheBackend,
		"settings_backend": cfg.SettingsBackend,
		"snapshot_backend": cfg.SnapshotBackend,
		"presence_timeout": cfg.PresenceTimeout.String(),
		"timezone":         loc.String(),
	}).Info("Container initialized")

	return c, nil
}

func (c *Container) init(ctx context.Context) error {
	cfg := c.Config
	repos := &repository.Repositories{}

	cache, err := c.keyValueStore(cfg.CacheBackend)
	if err != nil {
		return err
	}
	repos.Cache = cache
	c.backends["cache"] = cache

	switch cfg.SettingsBackend {
	case config.BackendMemory, config.BackendRedis:
		store, err := c.keyValueStore(cfg.SettingsBackend)
		if err != nil {
			return err
		}
		repos.Settings = store
		c.backends["settings"] = store
	default:
		store, err := c.durableStore(ctx, cfg.SettingsBackend)
		if err != nil {
			return err
		}
		repos.Settings = store
		c.backends["settings"] = store
	}

	c.Repositories = repos
	c.Services = buildServices(repos, c.Clock, cfg, c.Logger)

	if cfg.SnapshotBackend != "" {
		archive, err := c.durableStore(ctx, cfg.SnapshotBackend)
		if err != nil {
			return err
		}
		c.backends["snapshot"] = archive
		c.Archive = archive
		c.Snapshot = service.NewSnapshotService(repos.Settings, archive, cfg.SnapshotInterval, c.Logger)
	}

	return nil
}

// keyValueStore returns a memory or Redis store. Memory and Redis are each
// created once and shared between the cache and settings roles.
func (c *Container) keyValueStore(backend string) (repository.Store, error) {
	switch backend {
	case config.BackendMemory:
		if store, ok := c.shared.(*repository.MemoryStore); ok {
			return store, nil
		}
		store := repository.NewMemoryStore(c.Clock)
		if c.shared == nil {
			c.shared = store
		}
		return store, nil
	case config.BackendRedis:
		if store, ok := c.shared.(*repository.RedisStore); ok {
			return store, nil
		}
		client, err := redis.NewClient(c.Config.RedisURL, c.Config.Environment, c.Logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		store := repository.NewRedisStore(client)
		if c.shared == nil {
			c.shared = store
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported key-value backend %q", backend)
	}
}

// durableStore opens a Postgres or SQLite store, creating its tables
func (c *Container) durableStore(ctx context.Context, backend string) (repository.DurableStore, error) {
	switch backend {
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, c.Config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store, err := repository.NewPostgresStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	case config.BackendSQLite:
		db, err := database.NewSQLiteDB(ctx, c.Config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		store, err := repository.NewSQLiteStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		c.Logger.WithField("path", db.Path()).Info("SQLite database opened")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported durable backend %q", backend)
	}
}

func buildServices(repos *repository.Repositories, clk clock.Clock, cfg *config.Config, log *logger.Logger) *service.Services {
	presence := service.NewPresenceService(repos.Cache, clk, cfg.PresenceTimeout, log)
	visits := service.NewVisitService(repos.Settings, clk, log)

	return &service.Services{
		Presence: presence,
		Visits:   visits,
		Settings: service.NewSettingsService(repos.Settings, log),
		Tracker:  service.NewTracker(presence, visits, clk, log),
	}
}

// Backends returns the stores by role, for health checks
func (c *Container) Backends() map[string]repository.Backend {
	out := make(map[string]repository.Backend, len(c.backends))
	for role, b := range c.backends {
		out[role] = b
	}
	return out
}

// Close releases every backend once, even when one store serves two roles
func (c *Container) Close() error {
	closed := make(map[repository.Backend]bool)
	var errs []error

	for role, b := range c.backends {
		if closed[b] {
			continue
		}
		closed[b] = true
		if err := b.Close(); err != nil {
			c.Logger.WithError(err).WithField("backend", role).Error("Failed to close backend")
			errs = append(errs, fmt.Errorf("%s: %w", role, err))
		}
	}
	c.backends = map[string]repository.Backend{}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close %d backends: %v", len(errs), errs)
	}
	return nil
}
