package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

// AdminRole grants access to the settings endpoints
const AdminRole = "admin"

// AdminClaims represents JWT claims for admin users
type AdminClaims struct {
	UserID  string   `json:"user_id"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
	IsAdmin bool     `json:"is_admin"`
	jwt.RegisteredClaims
}

// HasAdminRole reports whether the claims allow managing settings
func (c *AdminClaims) HasAdminRole() bool {
	if c.IsAdmin {
		return true
	}
	for _, role := range c.Roles {
		if role == AdminRole {
			return true
		}
	}
	return false
}

// AdminAuth requires an HS256 bearer token signed with secret whose claims
// carry the admin role. An empty secret rejects everyone.
func AdminAuth(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	log = log.Named("admin")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeErrorResponse(w, r, apperrors.NewAuthorizationError("Admin access is not configured"), log)
				return
			}

			claims, err := parseAdminToken(r.Header.Get("Authorization"), secret)
			if err != nil {
				log.WithError(err).Debug("Admin token rejected")
				writeErrorResponse(w, r, apperrors.NewAuthenticationError("Invalid or missing admin token"), log)
				return
			}

			if !claims.HasAdminRole() {
				writeErrorResponse(w, r, apperrors.NewAuthorizationError("Insufficient privileges"), log)
				return
			}

			log.WithFields(map[string]interface{}{
				"user_id": claims.UserID,
				"method":  r.Method,
				"path":    r.URL.Path,
			}).Info("Admin request authorized")

			ctx := context.WithValue(r.Context(), AdminClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseAdminToken(header, secret string) (*AdminClaims, error) {
	if header == "" {
		return nil, fmt.Errorf("no authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}
