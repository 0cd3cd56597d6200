package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"live-tracker/pkg/logger"
)

const (
	// SessionName is the cookie that carries the visitor's session
	SessionName = "live_tracker_session"

	sessionTokenKey = "token"
	sessionMaxAge   = 60 * 60 * 24
)

// NewSessionStore creates the cookie store backing visitor sessions
func NewSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   sessionMaxAge,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
	return store
}

// Session makes sure every request has an opaque session token. A token is
// minted and saved to the cookie on first contact, and reused afterwards.
func Session(store sessions.Store, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// A cookie signed with an old secret decodes as a fresh session
			sess, err := store.Get(r, SessionName)
			if err != nil {
				log.WithError(err).Debug("Discarding unreadable session cookie")
			}

			token, _ := sess.Values[sessionTokenKey].(string)
			if token == "" {
				token = uuid.NewString()
				sess.Values[sessionTokenKey] = token
				if err := sess.Save(r, w); err != nil {
					log.WithError(err).Warn("Failed to save session cookie")
				} else {
					log.WithField("session", logger.TokenForLog(token)).Debug("Session started")
				}
			}

			ctx := context.WithValue(r.Context(), SessionTokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
