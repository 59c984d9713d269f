package middleware

import (
	"net/http"
	"strings"

	"github.com/curasync/portal/internal/session"
	"github.com/curasync/portal/pkg/logging"
)

// SessionConfig wires the session middleware.
type SessionConfig struct {
	Tokens     *session.Tokens
	Store      *session.Store
	CookieName string
	Logger     *logging.Logger
}

// Session resolves the session handle from the cookie or a Bearer header and
// attaches the session id and cached user to the request context. Requests
// without a valid handle pass through anonymously.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r, cfg.CookieName)
			if token == "" || cfg.Tokens == nil || cfg.Store == nil {
				next.ServeHTTP(w, r)
				return
			}
			sessionID, err := cfg.Tokens.Parse(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := session.WithSessionID(r.Context(), sessionID)
			user, err := cfg.Store.CurrentUser(ctx, sessionID)
			if err != nil {
				logger.Error("session lookup failed", "error", err)
				http.Error(w, `{"error": "session unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if user != nil {
				ctx = session.WithUser(ctx, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without a signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.UserFromContext(r.Context()); !ok {
			http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionToken returns the raw session handle from the cookie, falling back
// to an Authorization: Bearer header.
func SessionToken(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
