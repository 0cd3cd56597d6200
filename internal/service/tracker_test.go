package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-tracker/internal/domain"
	"live-tracker/internal/repository"
	"live-tracker/pkg/clock"
	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

func newTestTracker(clk clock.Clock, cache repository.CacheRepository, settings repository.SettingsRepository) *Tracker {
	log := logger.Nop()
	return NewTracker(
		NewPresenceService(cache, clk, DefaultPresenceTimeout, log),
		NewVisitService(settings, clk, log),
		clk,
		log,
	)
}

func TestTracker_PageViewsFeedBothComponents(t *testing.T) {
	ctx := context.Background()
	clk, store := newTestStore()
	tracker := newTestTracker(clk, store, store)

	require.NoError(t, tracker.TrackPageView(ctx, "a"))
	require.NoError(t, tracker.TrackPageView(ctx, "a"))
	require.NoError(t, tracker.TrackPageView(ctx, "b"))

	live, err := tracker.LiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, live)

	stats, err := tracker.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.Statistics{TotalVisitors: 3, Last7Days: 3, Last30Days: 3}, stats)
}

func TestTracker_Summary(t *testing.T) {
	ctx := context.Background()
	clk, store := newTestStore()
	tracker := newTestTracker(clk, store, store)

	require.NoError(t, tracker.TrackPageView(ctx, "a"))
	clk.Advance(10 * time.Minute)
	require.NoError(t, tracker.TrackPageView(ctx, "b"))

	summary, err := tracker.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.LiveUsers)
	assert.Equal(t, int64(2), summary.TotalVisitors)
	assert.Equal(t, clk.Now(), summary.GeneratedAt)
}

func TestTracker_PresenceFailureStillCountsVisit(t *testing.T) {
	ctx := context.Background()
	clk, store := newTestStore()
	tracker := newTestTracker(clk, failingStore{}, store)

	require.NoError(t, tracker.TrackPageView(ctx, "a"), "a counted visit is a successful page view")

	total, err := store.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestTracker_VisitFailureStillTouchesPresence(t *testing.T) {
	ctx := context.Background()
	clk, store := newTestStore()
	tracker := newTestTracker(clk, store, failingStore{})

	err := tracker.TrackPageView(ctx, "a")
	assert.True(t, apperrors.IsStorageError(err))

	live, err := tracker.LiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, live)
}

func TestTracker_SummaryDegradesPerPart(t *testing.T) {
	ctx := context.Background()
	clk, store := newTestStore()
	_, err := store.IncrementCounter(ctx, repository.KeyVisitorTotal, 9)
	require.NoError(t, err)

	tracker := newTestTracker(clk, failingStore{}, store)

	summary, err := tracker.Summary(ctx)
	assert.True(t, apperrors.IsStorageError(err))
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.LiveUsers)
	assert.Equal(t, int64(9), summary.TotalVisitors)
}
