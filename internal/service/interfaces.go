package service

import (
	"context"

	"live-tracker/internal/domain"
)

// PresenceTracker defines the interface for live session tracking
type PresenceTracker interface {
	// Touch refreshes token's last-seen time and sweeps stale sessions
	Touch(ctx context.Context, token string) error

	// LiveCount returns the number of sessions that are live right now
	LiveCount(ctx context.Context) (int, error)
}

// VisitAggregator defines the interface for historical visit counting
type VisitAggregator interface {
	// RecordVisit counts one page view in the total and today's bucket
	RecordVisit(ctx context.Context) error

	// Total returns the all-time visit count
	Total(ctx context.Context) (int64, error)

	// RangeSum returns the visits recorded within days days of today, inclusive
	RangeSum(ctx context.Context, days int) (int64, error)

	// Statistics returns total, last 7 days and last 30 days
	Statistics(ctx context.Context) (*domain.Statistics, error)

	// DailyCounts returns every daily bucket, newest first
	DailyCounts(ctx context.Context) ([]domain.DailyCount, error)
}

// SettingsService defines the interface for plugin-level settings
type SettingsService interface {
	// DisplayOption returns where the live count should be shown
	DisplayOption(ctx context.Context) (domain.DisplayOption, error)

	// SetDisplayOption persists a new display option
	SetDisplayOption(ctx context.Context, option domain.DisplayOption) error
}

// Services aggregates all service interfaces
type Services struct {
	Presence PresenceTracker
	Visits   VisitAggregator
	Settings SettingsService
	Tracker  *Tracker
}
