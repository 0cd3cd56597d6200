package service

import (
	"context"
	"fmt"
	"time"

	"live-tracker/internal/repository"
	"live-tracker/pkg/clock"
	apperrors "live-tracker/pkg/errors"
)

var testStart = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestStore() (*clock.Manual, *repository.MemoryStore) {
	clk := clock.NewManual(testStart)
	return clk, repository.NewMemoryStore(clk)
}

// failingStore fails every primitive the way an unreachable backend would
type failingStore struct{}

func (failingStore) storageErr(op string) error {
	return apperrors.NewStorageError(op, fmt.Errorf("connection refused"))
}

func (f failingStore) GetCached(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.storageErr("get_cached")
}

func (f failingStore) SetCached(context.Context, string, []byte, time.Duration) error {
	return f.storageErr("set_cached")
}

func (f failingStore) GetSetting(context.Context, string, string) (string, error) {
	return "", f.storageErr("get_setting")
}

func (f failingStore) SetSetting(context.Context, string, string) error {
	return f.storageErr("set_setting")
}

func (f failingStore) Counter(context.Context, string) (int64, error) {
	return 0, f.storageErr("counter")
}

func (f failingStore) IncrementCounter(context.Context, string, int64) (int64, error) {
	return 0, f.storageErr("increment_counter")
}

func (f failingStore) CounterFields(context.Context, string) (map[string]int64, error) {
	return nil, f.storageErr("counter_fields")
}

func (f failingStore) IncrementCounterField(context.Context, string, string, int64) (int64, error) {
	return 0, f.storageErr("increment_counter_field")
}

func (f failingStore) RaiseCounter(context.Context, string, int64) (int64, error) {
	return 0, f.storageErr("raise_counter")
}

func (f failingStore) RaiseCounterField(context.Context, string, string, int64) (int64, error) {
	return 0, f.storageErr("raise_counter_field")
}

// laggingStore pauses after every counter read, like a remote archive with a
// slow round-trip, so concurrent writers interleave between read and write.
type laggingStore struct {
	*repository.MemoryStore
	lag time.Duration
}

func (l laggingStore) Counter(ctx context.Context, key string) (int64, error) {
	n, err := l.MemoryStore.Counter(ctx, key)
	time.Sleep(l.lag)
	return n, err
}

func (l laggingStore) CounterFields(ctx context.Context, key string) (map[string]int64, error) {
	fields, err := l.MemoryStore.CounterFields(ctx, key)
	time.Sleep(l.lag)
	return fields, err
}
