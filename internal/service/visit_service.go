package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"live-tracker/internal/domain"
	"live-tracker/internal/repository"
	"live-tracker/pkg/clock"
	"live-tracker/pkg/logger"
	"live-tracker/pkg/metrics"
)

// Statistics windows, in days
const (
	WindowWeek  = 7
	WindowMonth = 30
)

// visitService keeps the all-time total and the per-day buckets in the
// settings store. Both are bumped with the store's atomic increment so that
// concurrent page views are never undercounted.
type visitService struct {
	settings repository.SettingsRepository
	clock    clock.Clock
	logger   *logger.Logger
}

// NewVisitService creates a new visit aggregator
func NewVisitService(settings repository.SettingsRepository, clk clock.Clock, log *logger.Logger) VisitAggregator {
	return &visitService{
		settings: settings,
		clock:    clk,
		logger:   log.Named("visits"),
	}
}

// RecordVisit increments the total and today's bucket. The two increments
// are independent; if the second fails the total has already moved.
func (s *visitService) RecordVisit(ctx context.Context) error {
	today := clock.Today(s.clock)

	total, err := s.settings.IncrementCounter(ctx, repository.KeyVisitorTotal, 1)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("increment_counter").Inc()
		return fmt.Errorf("failed to increment total visits: %w", err)
	}

	daily, err := s.settings.IncrementCounterField(ctx, repository.KeyVisitorDaily, today, 1)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("increment_counter_field").Inc()
		return fmt.Errorf("failed to increment daily visits: %w", err)
	}

	metrics.VisitsRecorded.Inc()
	s.logger.WithFields(map[string]interface{}{
		"total": total,
		"date":  today,
		"daily": daily,
	}).Debug("Visit recorded")

	return nil
}

// Total returns the all-time visit count
func (s *visitService) Total(ctx context.Context) (int64, error) {
	total, err := s.settings.Counter(ctx, repository.KeyVisitorTotal)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("counter").Inc()
		return 0, fmt.Errorf("failed to read total visits: %w", err)
	}
	return total, nil
}

// RangeSum adds up every bucket whose date is at most days days before today.
// A bucket exactly days old is included. Buckets dated after today (clock
// skew between nodes) have a negative distance and are included too.
func (s *visitService) RangeSum(ctx context.Context, days int) (int64, error) {
	buckets, err := s.buckets(ctx)
	if err != nil {
		return 0, err
	}
	sums := s.sumWindows(buckets, days)
	return sums[0], nil
}

// Statistics computes all three figures from a single read of each counter
func (s *visitService) Statistics(ctx context.Context) (*domain.Statistics, error) {
	total, err := s.Total(ctx)
	if err != nil {
		return nil, err
	}

	buckets, err := s.buckets(ctx)
	if err != nil {
		return nil, err
	}

	sums := s.sumWindows(buckets, WindowWeek, WindowMonth)
	return &domain.Statistics{
		TotalVisitors: total,
		Last7Days:     sums[0],
		Last30Days:    sums[1],
	}, nil
}

// DailyCounts returns the buckets sorted newest first
func (s *visitService) DailyCounts(ctx context.Context) ([]domain.DailyCount, error) {
	buckets, err := s.buckets(ctx)
	if err != nil {
		return nil, err
	}

	counts := make([]domain.DailyCount, 0, len(buckets))
	for date, count := range buckets {
		counts = append(counts, domain.DailyCount{Date: date, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Date > counts[j].Date
	})
	return counts, nil
}

func (s *visitService) buckets(ctx context.Context) (map[string]int64, error) {
	buckets, err := s.settings.CounterFields(ctx, repository.KeyVisitorDaily)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("counter_fields").Inc()
		return nil, fmt.Errorf("failed to read daily visits: %w", err)
	}
	return buckets, nil
}

// sumWindows computes one sum per window against a single "today"
func (s *visitService) sumWindows(buckets map[string]int64, windows ...int) []int64 {
	loc := s.clock.Location()
	today := clock.Midnight(s.clock.Now(), loc)

	sums := make([]int64, len(windows))
	for date, count := range buckets {
		day, err := time.ParseInLocation(clock.DayLayout, date, loc)
		if err != nil {
			s.logger.WithField("date", date).Debug("Skipping bucket with unparseable date")
			continue
		}

		diff := clock.DaysBetween(today, day)
		for i, window := range windows {
			if diff <= window {
				sums[i] += count
			}
		}
	}
	return sums
}
