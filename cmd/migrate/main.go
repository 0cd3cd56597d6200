package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"live-tracker/internal/config"
	"live-tracker/internal/container"
	"live-tracker/internal/repository"
	"live-tracker/internal/service"
	"live-tracker/pkg/logger"
)

const usage = `Usage: migrate [schema|snapshot|restore|stats]

  schema    open every configured durable backend, creating its tables
  snapshot  copy live counters into SNAPSHOT_BACKEND
  restore   copy SNAPSHOT_BACKEND counters into the live store
  stats     print total, last 7 days and last 30 days`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}
	defer c.Close()

	if err := run(ctx, command, c); err != nil {
		log.WithError(err).WithField("command", command).Error("Command failed")
		_ = c.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, c *container.Container) error {
	switch command {
	case "schema":
		for role, b := range c.Backends() {
			if err := b.Ping(ctx); err != nil {
				return fmt.Errorf("%s backend unreachable: %w", role, err)
			}
		}
		fmt.Println("Schema is up to date")
		return nil

	case "snapshot", "restore":
		if c.Archive == nil {
			return fmt.Errorf("SNAPSHOT_BACKEND is not set")
		}

		var src, dst repository.SettingsRepository = c.Repositories.Settings, c.Archive
		if command == "restore" {
			src, dst = dst, src
		}
		report, err := service.SyncCounters(ctx, src, dst)
		if err != nil {
			return err
		}
		return printJSON(report)

	case "stats":
		stats, err := c.Services.Visits.Statistics(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)

	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
