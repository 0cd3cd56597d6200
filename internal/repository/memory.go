package repository

import (
	"context"
	"sync"
	"time"

	"live-tracker/pkg/clock"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps everything in process memory. It backs single-instance
// deployments and the service tests.
type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	cache    map[string]cacheEntry
	settings map[string]string
	counters map[string]int64
	fields   map[string]map[string]int64
}

// NewMemoryStore creates an empty store. TTLs are measured against c.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewSystem(nil)
	}
	return &MemoryStore{
		clock:    c,
		cache:    make(map[string]cacheEntry),
		settings: make(map[string]string),
		counters: make(map[string]int64),
		fields:   make(map[string]map[string]int64),
	}
}

func (s *MemoryStore) GetCached(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && s.clock.Now().After(entry.expiresAt) {
		delete(s.cache, key)
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (s *MemoryStore) SetCached(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := cacheEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}
	s.cache[key] = entry
	return nil
}

func (s *MemoryStore) GetSetting(_ context.Context, key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.settings[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s *MemoryStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}

func (s *MemoryStore) Counter(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[key], nil
}

func (s *MemoryStore) IncrementCounter(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key] += delta
	return s.counters[key], nil
}

func (s *MemoryStore) CounterFields(_ context.Context, key string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.fields[key]))
	for field, v := range s.fields[key] {
		out[field] = v
	}
	return out, nil
}

func (s *MemoryStore) IncrementCounterField(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.fields[key]
	if !ok {
		m = make(map[string]int64)
		s.fields[key] = m
	}
	m[field] += delta
	return m[field], nil
}

func (s *MemoryStore) RaiseCounter(_ context.Context, key string, value int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value > s.counters[key] {
		s.counters[key] = value
	}
	return s.counters[key], nil
}

func (s *MemoryStore) RaiseCounterField(_ context.Context, key, field string, value int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.fields[key]
	if !ok {
		m = make(map[string]int64)
		s.fields[key] = m
	}
	if value > m[field] {
		m[field] = value
	}
	return m[field], nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
