package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
	// SessionTokenContextKey is the key for the visitor's session token in context
	SessionTokenContextKey ContextKey = "session_token"
	// AdminClaimsContextKey is the key for verified admin claims in context
	AdminClaimsContextKey ContextKey = "admin_claims"
)

// GetRequestID returns the request id set by RequestID, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// GetSessionToken returns the session token set by Session, or ""
func GetSessionToken(ctx context.Context) string {
	token, _ := ctx.Value(SessionTokenContextKey).(string)
	return token
}

// GetAdminClaims returns the claims set by AdminAuth, or nil
func GetAdminClaims(ctx context.Context) *AdminClaims {
	claims, _ := ctx.Value(AdminClaimsContextKey).(*AdminClaims)
	return claims
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError, log *logger.Logger) {
	log.WithError(appErr).WithField("path", r.URL.Path).Warn("Request rejected")

	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = GetRequestID(r.Context())
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithError(err).Error("Failed to encode error response")
	}
}
