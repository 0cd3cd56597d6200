package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"live-tracker/internal/domain"
	"live-tracker/internal/repository"
	"live-tracker/pkg/clock"
	"live-tracker/pkg/logger"
	"live-tracker/pkg/metrics"
)

// DefaultPresenceTimeout is how long a session stays live without activity
const DefaultPresenceTimeout = 300 * time.Second

// presenceService keeps the token -> last-seen mapping in the cache.
// Every Touch reads the whole mapping, sweeps stale entries and writes it
// back; there is no background timer. Two concurrent touches can race and
// drop each other's refresh, which at worst makes a session look expired
// slightly early.
type presenceService struct {
	cache   repository.CacheRepository
	clock   clock.Clock
	timeout time.Duration
	logger  *logger.Logger
}

// NewPresenceService creates a new presence tracker. A non-positive timeout
// falls back to DefaultPresenceTimeout.
func NewPresenceService(cache repository.CacheRepository, clk clock.Clock, timeout time.Duration, log *logger.Logger) PresenceTracker {
	if timeout <= 0 {
		timeout = DefaultPresenceTimeout
	}
	return &presenceService{
		cache:   cache,
		clock:   clk,
		timeout: timeout,
		logger:  log.Named("presence"),
	}
}

// Touch inserts or refreshes token and drops every session past the timeout
func (s *presenceService) Touch(ctx context.Context, token string) error {
	sessions, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load presence: %w", err)
	}

	now := s.clock.Now()
	sessions[token] = now.Unix()

	evicted := 0
	for sid, lastSeen := range sessions {
		if !domain.IsLive(lastSeen, now, s.timeout) {
			delete(sessions, sid)
			evicted++
		}
	}

	payload, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to encode presence: %w", err)
	}

	// The cache TTL equals the liveness window so an idle site's mapping simply disappears
	if err := s.cache.SetCached(ctx, repository.KeyPresence, payload, s.timeout); err != nil {
		metrics.StorageErrors.WithLabelValues("set_cached").Inc()
		return fmt.Errorf("failed to save presence: %w", err)
	}

	metrics.PresenceTouches.Inc()
	metrics.PresenceEvicted.Add(float64(evicted))
	metrics.LiveSessions.Set(float64(len(sessions)))

	s.logger.WithFields(map[string]interface{}{
		"session": logger.TokenForLog(token),
		"live":    len(sessions),
		"evicted": evicted,
		"timeout": s.timeout.String(),
	}).Debug("Presence refreshed")

	return nil
}

// LiveCount counts the stored sessions that are still inside the timeout
func (s *presenceService) LiveCount(ctx context.Context) (int, error) {
	sessions, err := s.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load presence: %w", err)
	}

	now := s.clock.Now()
	live := 0
	for _, lastSeen := range sessions {
		if domain.IsLive(lastSeen, now, s.timeout) {
			live++
		}
	}

	metrics.LiveSessions.Set(float64(live))
	return live, nil
}

// load reads the mapping; a missing or undecodable value is an empty mapping
func (s *presenceService) load(ctx context.Context) (domain.PresenceSet, error) {
	raw, found, err := s.cache.GetCached(ctx, repository.KeyPresence)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("get_cached").Inc()
		return nil, err
	}

	sessions := make(domain.PresenceSet)
	if !found || len(raw) == 0 {
		return sessions, nil
	}

	if err := json.Unmarshal(raw, &sessions); err != nil || sessions == nil {
		metrics.PresenceMalformed.Inc()
		s.logger.WithError(err).Warn("Presence payload is malformed, treating as empty")
		return make(domain.PresenceSet), nil
	}

	return sessions, nil
}
