package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"live-tracker/internal/middleware"
	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

// Response is the envelope every JSON endpoint answers with
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// writeError renders err as an ErrorResponse. Anything that is not an
// AppError is reported as an internal error without leaking its text.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	appErr := apperrors.AsAppError(err)

	entry := log.WithError(err).WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"request_id": middleware.GetRequestID(r.Context()),
	})
	if appErr.StatusCode >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = middleware.GetRequestID(r.Context())
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithError(err).Error("Failed to encode error response")
	}
}

// NotFound answers unknown routes
func NotFound(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, log, apperrors.NewNotFoundError("Endpoint not found"))
	}
}
