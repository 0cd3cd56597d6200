package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

const testSecret = "test-admin-secret"

func signToken(t *testing.T, claims *AdminClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func adminClaims(isAdmin bool, roles ...string) *AdminClaims {
	return &AdminClaims{
		UserID:  "u-1",
		Email:   "owner@example.com",
		Roles:   roles,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAdminAuth(t *testing.T) {
	expired := adminClaims(true)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name       string
		secret     string
		header     string
		wantStatus int
		wantType   apperrors.ErrorType
	}{
		{"missing header", testSecret, "", http.StatusUnauthorized, apperrors.ErrorTypeAuthentication},
		{"not bearer", testSecret, "Basic abc", http.StatusUnauthorized, apperrors.ErrorTypeAuthentication},
		{"garbage token", testSecret, "Bearer not.a.jwt", http.StatusUnauthorized, apperrors.ErrorTypeAuthentication},
		{"wrong secret", testSecret, "Bearer " + signToken(t, adminClaims(true), jwt.SigningMethodHS256, []byte("other")), http.StatusUnauthorized, apperrors.ErrorTypeAuthentication},
		{"wrong algorithm", testSecret, "Bearer " + signToken(t, adminClaims(true), jwt.SigningMethodHS512, []byte(testSecret)), http.StatusUnauthorized, apperrors.ErrorTypeAuthentication},
		{"expired", testSecret, "Bearer " + signToken(t, expired, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, apperrors.ErrorTypeAuthentication},
		{"not admin", testSecret, "Bearer " + signToken(t, adminClaims(false, "editor"), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusForbidden, apperrors.ErrorTypeAuthorization},
		{"unconfigured", "", "Bearer " + signToken(t, adminClaims(true), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusForbidden, apperrors.ErrorTypeAuthorization},
		{"admin flag", testSecret, "Bearer " + signToken(t, adminClaims(true), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK, ""},
		{"admin role", testSecret, "Bearer " + signToken(t, adminClaims(false, "admin"), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *AdminClaims
			handler := AdminAuth(tt.secret, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetAdminClaims(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "u-1", seen.UserID)
				return
			}

			var body apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantType, body.Error.Type)
		})
	}
}

func TestSession_MintsAndReusesToken(t *testing.T) {
	store := NewSessionStore("0123456789abcdef0123456789abcdef", false)
	var tokens []string
	handler := Session(store, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, GetSessionToken(r.Context()))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Empty(t, rec.Result().Cookies(), "existing session is not rewritten")

	third := httptest.NewRecorder()
	handler.ServeHTTP(third, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, tokens, 3)
	_, err := uuid.Parse(tokens[0])
	assert.NoError(t, err)
	assert.Equal(t, tokens[0], tokens[1])
	assert.NotEqual(t, tokens[0], tokens[2])
}

func TestSession_TamperedCookieStartsOver(t *testing.T) {
	store := NewSessionStore("0123456789abcdef0123456789abcdef", false)
	var token string
	handler := Session(store, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = GetSessionToken(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionName, Value: "forged"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, token)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "<script>", seen)
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://site.example"}
	handler := CORS(cfg, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/track", nil)
	req.Header.Set("Origin", "https://site.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "https://site.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodPost, "/api/track", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/track", nil)
	req.Header.Set("Origin", "https://site.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
