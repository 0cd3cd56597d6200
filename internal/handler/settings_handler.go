package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"live-tracker/internal/domain"
	"live-tracker/internal/service"
	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

// SettingsHandler serves the admin settings page
type SettingsHandler struct {
	settings service.SettingsService
	visits   service.VisitAggregator
	logger   *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(services *service.Services, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: services.Settings,
		visits:   services.Visits,
		logger:   log.Named("settings_handler"),
	}
}

// RegisterRoutes registers the settings routes. Callers wrap r with admin auth.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.Get)
	r.Put("/settings", h.Update)
}

// UpdateSettingsRequest is the body of PUT /api/settings
type UpdateSettingsRequest struct {
	DisplayOption domain.DisplayOption `json:"display_option"`
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.page(r))
}

// Update handles PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	if err := h.settings.SetDisplayOption(r.Context(), req.DisplayOption); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, h.page(r))
}

func (h *SettingsHandler) page(r *http.Request) *domain.SettingsPage {
	option, err := h.settings.DisplayOption(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Display option unavailable, using default")
	}

	stats, err := h.visits.Statistics(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Statistics unavailable, reporting zeros")
		stats = &domain.Statistics{}
	}

	return &domain.SettingsPage{DisplayOption: option, Statistics: *stats}
}
