package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"live-tracker/internal/repository"
	"live-tracker/pkg/logger"
)

const healthTimeout = 2 * time.Second

// HealthHandler handles health check requests
type HealthHandler struct {
	backends map[string]repository.Backend
	logger   *logger.Logger
}

// NewHealthHandler creates a new health handler. backends are pinged by name.
func NewHealthHandler(backends map[string]repository.Backend, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		backends: backends,
		logger:   log.Named("health"),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   "live-tracker",
		Checks:    make(map[string]string, len(h.backends)),
	}
	status := http.StatusOK

	for name, backend := range h.backends {
		if err := backend.Ping(ctx); err != nil {
			h.logger.WithError(err).WithField("backend", name).Warn("Health check failed")
			response.Checks[name] = "unavailable"
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode health check response")
	}
}
