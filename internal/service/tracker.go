package service

import (
	"context"
	"fmt"

	"live-tracker/internal/domain"
	"live-tracker/pkg/clock"
	"live-tracker/pkg/logger"
)

// Tracker is what request handlers talk to: one write per qualifying page
// view and a couple of read-only queries.
type Tracker struct {
	presence PresenceTracker
	visits   VisitAggregator
	clock    clock.Clock
	logger   *logger.Logger
}

// NewTracker combines the presence tracker and the visit aggregator
func NewTracker(presence PresenceTracker, visits VisitAggregator, clk clock.Clock, log *logger.Logger) *Tracker {
	return &Tracker{
		presence: presence,
		visits:   visits,
		clock:    clk,
		logger:   log.Named("tracker"),
	}
}

// TrackPageView refreshes the session and counts the visit. Both steps always
// run. Only a failure to count is returned: once the visit is recorded the
// page view succeeds, and a presence failure is logged, so a client retrying
// on error does not count an already recorded visit again.
func (t *Tracker) TrackPageView(ctx context.Context, token string) error {
	if err := t.presence.Touch(ctx, token); err != nil {
		t.logger.WithError(err).WithField("session", logger.TokenForLog(token)).Warn("Failed to refresh presence")
	}

	if err := t.visits.RecordVisit(ctx); err != nil {
		t.logger.WithError(err).Warn("Failed to record visit")
		return fmt.Errorf("track page view: %w", err)
	}
	return nil
}

// LiveCount returns the number of live sessions
func (t *Tracker) LiveCount(ctx context.Context) (int, error) {
	return t.presence.LiveCount(ctx)
}

// Statistics returns total, last 7 days and last 30 days
func (t *Tracker) Statistics(ctx context.Context) (*domain.Statistics, error) {
	return t.visits.Statistics(ctx)
}

// Summary gathers live users and statistics. Each part degrades to zero on
// its own failure; the first error is still returned so callers can log it.
func (t *Tracker) Summary(ctx context.Context) (*domain.Summary, error) {
	summary := &domain.Summary{GeneratedAt: t.clock.Now()}
	var firstErr error

	live, err := t.presence.LiveCount(ctx)
	if err != nil {
		firstErr = err
	} else {
		summary.LiveUsers = live
	}

	stats, err := t.visits.Statistics(ctx)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		summary.Statistics = *stats
	}

	return summary, firstErr
}
