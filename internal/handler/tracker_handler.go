package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"live-tracker/internal/domain"
	"live-tracker/internal/middleware"
	"live-tracker/internal/service"
	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
	"live-tracker/pkg/metrics"
)

const maxTrackBody = 4 << 10

// SettingsPath is where the admin-bar label links to
const SettingsPath = "/api/settings"

// TrackerHandler serves the public tracking and read endpoints
type TrackerHandler struct {
	tracker  *service.Tracker
	visits   service.VisitAggregator
	settings service.SettingsService
	excluded []string
	logger   *logger.Logger
}

// NewTrackerHandler creates a new tracker handler. Page views for paths
// under any of excluded are not tracked.
func NewTrackerHandler(services *service.Services, excluded []string, log *logger.Logger) *TrackerHandler {
	return &TrackerHandler{
		tracker:  services.Tracker,
		visits:   services.Visits,
		settings: services.Settings,
		excluded: excluded,
		logger:   log.Named("tracker_handler"),
	}
}

// RegisterRoutes registers the tracker routes
func (h *TrackerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/track", h.Track)
	r.Get("/live", h.Live)
	r.Get("/stats", h.Stats)
	r.Get("/stats/daily", h.DailyStats)
	r.Get("/dashboard/widget", h.DashboardWidget)
	r.Get("/admin-bar", h.AdminBar)
}

// LiveResponse is the body of GET /api/live
type LiveResponse struct {
	LiveUsers int `json:"live_users"`
}

// AdminBarResponse is the body of GET /api/admin-bar
type AdminBarResponse struct {
	LiveUsers int                 `json:"live_users"`
	Node      domain.AdminBarNode `json:"node"`
}

// Track handles POST /api/track. It answers 503 only when the visit could
// not be counted; a failed presence refresh is logged and still answers 202.
func (h *TrackerHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req domain.TrackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTrackBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, h.logger, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	if h.isExcluded(req.Path) {
		metrics.PageViews.WithLabelValues("excluded").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	token := middleware.GetSessionToken(r.Context())
	if token == "" {
		writeError(w, r, h.logger, apperrors.NewValidationError("Missing session", nil))
		return
	}

	if err := h.tracker.TrackPageView(r.Context(), token); err != nil {
		metrics.PageViews.WithLabelValues("failed").Inc()
		writeError(w, r, h.logger, err)
		return
	}

	metrics.PageViews.WithLabelValues("tracked").Inc()
	w.WriteHeader(http.StatusAccepted)
}

// Live handles GET /api/live
func (h *TrackerHandler) Live(w http.ResponseWriter, r *http.Request) {
	live, err := h.tracker.LiveCount(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Live count unavailable, reporting zero")
		live = 0
	}
	writeJSON(w, h.logger, http.StatusOK, LiveResponse{LiveUsers: live})
}

// Stats handles GET /api/stats
func (h *TrackerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tracker.Statistics(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Statistics unavailable, reporting zeros")
		stats = &domain.Statistics{}
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

// DailyStats handles GET /api/stats/daily
func (h *TrackerHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.visits.DailyCounts(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Daily counts unavailable")
		counts = []domain.DailyCount{}
	}
	writeJSON(w, h.logger, http.StatusOK, counts)
}

// DashboardWidget handles GET /api/dashboard/widget
func (h *TrackerHandler) DashboardWidget(w http.ResponseWriter, r *http.Request) {
	if !h.displayed(r, domain.DisplayDashboard) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	summary, err := h.tracker.Summary(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Widget data partially unavailable")
	}
	writeJSON(w, h.logger, http.StatusOK, summary)
}

// AdminBar handles GET /api/admin-bar
func (h *TrackerHandler) AdminBar(w http.ResponseWriter, r *http.Request) {
	if !h.displayed(r, domain.DisplayAdminBar) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	live, err := h.tracker.LiveCount(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Live count unavailable, reporting zero")
		live = 0
	}

	writeJSON(w, h.logger, http.StatusOK, AdminBarResponse{
		LiveUsers: live,
		Node: domain.AdminBarNode{
			ID:    "live_users",
			Title: fmt.Sprintf("Live Users: %d", live),
			Href:  SettingsPath,
		},
	})
}

// displayed reports whether option is the selected display. An unreadable
// setting falls back to the default.
func (h *TrackerHandler) displayed(r *http.Request, option domain.DisplayOption) bool {
	current, err := h.settings.DisplayOption(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Display option unavailable, using default")
	}
	return current == option
}

func (h *TrackerHandler) isExcluded(path string) bool {
	for _, prefix := range h.excluded {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
