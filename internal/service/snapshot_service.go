package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"live-tracker/internal/repository"
	"live-tracker/pkg/logger"
)

// DefaultSnapshotInterval is how often live counters are mirrored to the archive
const DefaultSnapshotInterval = 30 * time.Second

// SyncReport describes what one counter sync changed. Behind counts counters
// where the destination was already ahead of the source.
type SyncReport struct {
	TotalAdded   int64 `json:"total_added"`
	DaysUpdated  int   `json:"days_updated"`
	Behind       int   `json:"behind"`
	OptionCopied bool  `json:"option_copied"`
}

// SyncCounters brings dst up to src. Every counter is raised to the source
// value and never lowered, so overlapping or repeated syncs against the same
// destination converge on the same result. The display option is copied
// when src has one.
func SyncCounters(ctx context.Context, src, dst repository.SettingsRepository) (*SyncReport, error) {
	report := &SyncReport{}

	srcTotal, err := src.Counter(ctx, repository.KeyVisitorTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to read source total: %w", err)
	}
	dstTotal, err := dst.Counter(ctx, repository.KeyVisitorTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination total: %w", err)
	}
	switch {
	case srcTotal > dstTotal:
		raised, err := dst.RaiseCounter(ctx, repository.KeyVisitorTotal, srcTotal)
		if err != nil {
			return nil, fmt.Errorf("failed to sync total: %w", err)
		}
		if raised > srcTotal {
			report.Behind++
		} else {
			report.TotalAdded = raised - dstTotal
		}
	case srcTotal < dstTotal:
		report.Behind++
	}

	srcDays, err := src.CounterFields(ctx, repository.KeyVisitorDaily)
	if err != nil {
		return nil, fmt.Errorf("failed to read source daily counts: %w", err)
	}
	dstDays, err := dst.CounterFields(ctx, repository.KeyVisitorDaily)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination daily counts: %w", err)
	}
	for day, count := range srcDays {
		have := dstDays[day]
		if count < have {
			report.Behind++
			continue
		}
		if count == have {
			continue
		}
		raised, err := dst.RaiseCounterField(ctx, repository.KeyVisitorDaily, day, count)
		if err != nil {
			return nil, fmt.Errorf("failed to sync daily count for %s: %w", day, err)
		}
		if raised > count {
			report.Behind++
			continue
		}
		report.DaysUpdated++
	}

	option, err := src.GetSetting(ctx, repository.KeyDisplayOption, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read source display option: %w", err)
	}
	if option != "" {
		if err := dst.SetSetting(ctx, repository.KeyDisplayOption, option); err != nil {
			return nil, fmt.Errorf("failed to sync display option: %w", err)
		}
		report.OptionCopied = true
	}

	return report, nil
}

// SnapshotService mirrors the live counters into an archive store on a
// ticker, and seeds an empty live store from the archive on start.
type SnapshotService struct {
	live     repository.SettingsRepository
	archive  repository.SettingsRepository
	interval time.Duration
	logger   *logger.Logger

	ticker    *time.Ticker
	stop      chan struct{}
	done      chan struct{}
	mu        sync.Mutex
	isRunning bool
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(live, archive repository.SettingsRepository, interval time.Duration, log *logger.Logger) *SnapshotService {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &SnapshotService{
		live:     live,
		archive:  archive,
		interval: interval,
		logger:   log.Named("snapshot"),
	}
}

// Start restores from the archive if the live store is empty and begins
// periodic snapshots
func (s *SnapshotService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := s.Restore(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to restore from archive, continuing with live counters")
	}

	s.ticker = time.NewTicker(s.interval)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.ticker, s.stop, s.done)

	s.isRunning = true
	s.logger.WithField("interval", s.interval.String()).Info("Snapshot service started")
	return nil
}

// Stop ends the periodic snapshots and saves a final one
func (s *SnapshotService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.ticker.Stop()
	close(s.stop)
	<-s.done
	s.isRunning = false

	if _, err := s.Save(ctx); err != nil {
		return fmt.Errorf("failed to save final snapshot: %w", err)
	}

	s.logger.Info("Snapshot service stopped")
	return nil
}

// Save mirrors the live counters into the archive
func (s *SnapshotService) Save(ctx context.Context) (*SyncReport, error) {
	report, err := SyncCounters(ctx, s.live, s.archive)
	if err != nil {
		return nil, err
	}

	entry := s.logger.WithFields(map[string]interface{}{
		"total_added":  report.TotalAdded,
		"days_updated": report.DaysUpdated,
	})
	if report.Behind > 0 {
		entry.WithField("behind", report.Behind).Warn("Archive is ahead of live counters")
	} else {
		entry.Debug("Snapshot saved")
	}
	return report, nil
}

// Restore seeds the live store from the archive when the live total is zero,
// as after a cache flush. A live store with data is left untouched.
func (s *SnapshotService) Restore(ctx context.Context) error {
	total, err := s.live.Counter(ctx, repository.KeyVisitorTotal)
	if err != nil {
		return fmt.Errorf("failed to read live total: %w", err)
	}
	if total > 0 {
		s.logger.Debug("Live store already has visit data, skipping restore")
		return nil
	}

	report, err := SyncCounters(ctx, s.archive, s.live)
	if err != nil {
		return fmt.Errorf("failed to restore from archive: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"total_restored": report.TotalAdded,
		"days_restored":  report.DaysUpdated,
	}).Info("Restored visit counters from archive")
	return nil
}

func (s *SnapshotService) run(ticker *time.Ticker, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.Save(ctx); err != nil {
				s.logger.WithError(err).Error("Failed to save periodic snapshot")
			}
			cancel()
		case <-stop:
			return
		}
	}
}
