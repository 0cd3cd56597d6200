package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-tracker/internal/repository"
	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

func TestSyncCounters_CopiesDifferences(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := repository.NewMemoryStore(clk)

	_, err := live.IncrementCounter(ctx, repository.KeyVisitorTotal, 10)
	require.NoError(t, err)
	_, err = live.IncrementCounterField(ctx, repository.KeyVisitorDaily, "2024-06-14", 4)
	require.NoError(t, err)
	_, err = live.IncrementCounterField(ctx, repository.KeyVisitorDaily, "2024-06-15", 6)
	require.NoError(t, err)
	require.NoError(t, live.SetSetting(ctx, repository.KeyDisplayOption, "admin_bar"))

	_, err = archive.IncrementCounter(ctx, repository.KeyVisitorTotal, 4)
	require.NoError(t, err)
	_, err = archive.IncrementCounterField(ctx, repository.KeyVisitorDaily, "2024-06-14", 4)
	require.NoError(t, err)

	report, err := SyncCounters(ctx, live, archive)
	require.NoError(t, err)
	assert.Equal(t, &SyncReport{TotalAdded: 6, DaysUpdated: 1, OptionCopied: true}, report)

	total, err := archive.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	days, err := archive.CounterFields(ctx, repository.KeyVisitorDaily)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2024-06-14": 4, "2024-06-15": 6}, days)
	option, err := archive.GetSetting(ctx, repository.KeyDisplayOption, "")
	require.NoError(t, err)
	assert.Equal(t, "admin_bar", option)

	// A second sync is a no-op
	report, err = SyncCounters(ctx, live, archive)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.TotalAdded)
	assert.Equal(t, 0, report.DaysUpdated)
}

func TestSyncCounters_NeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := repository.NewMemoryStore(clk)

	_, err := live.IncrementCounter(ctx, repository.KeyVisitorTotal, 2)
	require.NoError(t, err)
	_, err = archive.IncrementCounter(ctx, repository.KeyVisitorTotal, 5)
	require.NoError(t, err)

	report, err := SyncCounters(ctx, live, archive)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Behind)
	assert.False(t, report.OptionCopied)

	total, err := archive.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestSyncCounters_OverlappingSyncsDoNotOvershoot(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := laggingStore{MemoryStore: repository.NewMemoryStore(clk), lag: 20 * time.Millisecond}

	_, err := live.IncrementCounter(ctx, repository.KeyVisitorTotal, 100)
	require.NoError(t, err)
	_, err = live.IncrementCounterField(ctx, repository.KeyVisitorDaily, "2024-06-15", 60)
	require.NoError(t, err)
	_, err = live.IncrementCounterField(ctx, repository.KeyVisitorDaily, "2024-06-14", 40)
	require.NoError(t, err)

	const replicas = 4
	var wg sync.WaitGroup
	for i := 0; i < replicas; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := SyncCounters(ctx, live, archive)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total, err := archive.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
	days, err := archive.CounterFields(ctx, repository.KeyVisitorDaily)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2024-06-15": 60, "2024-06-14": 40}, days)

	report, err := SyncCounters(ctx, live, archive)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Behind)
	assert.Equal(t, int64(0), report.TotalAdded)
}

func TestSyncCounters_RestoreFromOverlappingArchiveKeepsTotal(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := laggingStore{MemoryStore: repository.NewMemoryStore(clk), lag: 10 * time.Millisecond}

	_, err := live.IncrementCounter(ctx, repository.KeyVisitorTotal, 25)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := SyncCounters(ctx, live, archive)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// A flushed live store comes back with exactly what was tracked
	_, fresh := newTestStore()
	snapshots := NewSnapshotService(fresh, archive, time.Hour, logger.Nop())
	require.NoError(t, snapshots.Restore(ctx))

	total, err := fresh.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
}

func TestSnapshot_RestoresEmptyLiveStore(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := repository.NewMemoryStore(clk)

	_, err := archive.IncrementCounter(ctx, repository.KeyVisitorTotal, 42)
	require.NoError(t, err)
	_, err = archive.IncrementCounterField(ctx, repository.KeyVisitorDaily, "2024-06-15", 7)
	require.NoError(t, err)

	snapshots := NewSnapshotService(live, archive, time.Hour, logger.Nop())
	require.NoError(t, snapshots.Start(ctx))
	defer snapshots.Stop(ctx)

	visits := NewVisitService(live, clk, logger.Nop())
	stats, err := visits.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.TotalVisitors)
	assert.Equal(t, int64(7), stats.Last7Days)
}

func TestSnapshot_LeavesPopulatedLiveStoreAlone(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := repository.NewMemoryStore(clk)

	_, err := live.IncrementCounter(ctx, repository.KeyVisitorTotal, 3)
	require.NoError(t, err)
	_, err = archive.IncrementCounter(ctx, repository.KeyVisitorTotal, 42)
	require.NoError(t, err)

	snapshots := NewSnapshotService(live, archive, time.Hour, logger.Nop())
	require.NoError(t, snapshots.Restore(ctx))

	total, err := live.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestSnapshot_StopSavesFinalSnapshot(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := repository.NewMemoryStore(clk)

	snapshots := NewSnapshotService(live, archive, time.Hour, logger.Nop())
	require.NoError(t, snapshots.Start(ctx))
	require.NoError(t, snapshots.Start(ctx), "second start is a no-op")

	visits := NewVisitService(live, clk, logger.Nop())
	for i := 0; i < 5; i++ {
		require.NoError(t, visits.RecordVisit(ctx))
	}

	require.NoError(t, snapshots.Stop(ctx))
	require.NoError(t, snapshots.Stop(ctx), "second stop is a no-op")

	total, err := archive.Counter(ctx, repository.KeyVisitorTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestSnapshot_PeriodicSave(t *testing.T) {
	ctx := context.Background()
	clk, live := newTestStore()
	archive := repository.NewMemoryStore(clk)

	_, err := live.IncrementCounter(ctx, repository.KeyVisitorTotal, 1)
	require.NoError(t, err)

	snapshots := NewSnapshotService(live, archive, 10*time.Millisecond, logger.Nop())
	require.NoError(t, snapshots.Start(ctx))
	defer snapshots.Stop(ctx)

	assert.Eventually(t, func() bool {
		total, err := archive.Counter(ctx, repository.KeyVisitorTotal)
		return err == nil && total == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSnapshot_ArchiveFailure(t *testing.T) {
	ctx := context.Background()
	_, live := newTestStore()

	snapshots := NewSnapshotService(live, failingStore{}, time.Hour, logger.Nop())
	_, err := snapshots.Save(ctx)
	assert.True(t, apperrors.IsStorageError(err))

	// restore failures are logged, not fatal
	require.NoError(t, snapshots.Start(ctx))
	assert.Error(t, snapshots.Stop(ctx))
}
