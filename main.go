package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"live-tracker/internal/config"
	"live-tracker/internal/container"
	"live-tracker/internal/handler"
	"live-tracker/internal/middleware"
	"live-tracker/pkg/logger"
	"live-tracker/pkg/metrics"
)

// Resources holds all resources that need cleanup
type Resources struct {
	container *container.Container
	server    *http.Server
	log       *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errors []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errors = append(errors, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Save the final snapshot while the backends are still open
	if r.container != nil && r.container.Snapshot != nil {
		r.log.Info("Stopping snapshot service...")
		if err := r.container.Snapshot.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop snapshot service")
			errors = append(errors, fmt.Errorf("snapshot service shutdown: %w", err))
		}
	}

	if r.container != nil {
		r.log.Info("Closing storage backends...")
		if err := r.container.Close(); err != nil {
			errors = append(errors, fmt.Errorf("backend close: %w", err))
		} else {
			r.log.Info("Storage backends closed successfully")
		}
	}

	if len(errors) > 0 {
		r.log.WithField("error_count", len(errors)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errors), errors)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting live-tracker server")

	if cfg.SessionSecret == "" {
		log.Warn("SESSION_SECRET is not set, session cookies will not survive a restart")
		cfg.SessionSecret = randomSecret()
	}
	if !cfg.AdminEnabled() {
		log.Warn("ADMIN_JWT_SECRET is not set, settings endpoints will reject every request")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	c, err := container.New(startCtx, cfg, log)
	startCancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	if c.Snapshot != nil {
		if err := c.Snapshot.Start(context.Background()); err != nil {
			log.WithError(err).Fatal("Failed to start snapshot service")
		}
	}

	router := setupRouter(c)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	resources := &Resources{
		container: c,
		server:    server,
		log:       log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Runs on every exit path; Cleanup is idempotent
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.Config
	log := c.Logger

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(15 * time.Second))

	healthHandler := handler.NewHealthHandler(c.Backends(), log)
	trackerHandler := handler.NewTrackerHandler(c.Services, cfg.ExcludedPathPrefixes, log)
	settingsHandler := handler.NewSettingsHandler(c.Services, log)

	r.Get("/health", healthHandler.Check)
	r.Get("/metrics", metrics.Handler)

	r.Route("/api", func(r chi.Router) {
		// Public tracking and read endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(middleware.NewSessionStore(cfg.SessionSecret, cfg.SessionCookieSecure), log))
			trackerHandler.RegisterRoutes(r)
		})

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.AdminJWTSecret, log))
			settingsHandler.RegisterRoutes(r)
		})
	})

	r.NotFound(handler.NotFound(log))

	log.Info("Router configured successfully")
	return r
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to generate session secret: %v", err))
	}
	return hex.EncodeToString(buf)
}
