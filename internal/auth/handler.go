package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/internal/session"
	"github.com/curasync/portal/pkg/logging"
)

// NoticeInvalidCredentials is shown for every failed sign-in.
const NoticeInvalidCredentials = "Invalid email or password"

// Authenticator checks credentials against the clinic API.
type Authenticator interface {
	LoginUser(ctx context.Context, email, password string) (*clinicapi.User, error)
}

// Auditor records sign-ins.
type Auditor interface {
	LogLogin(ctx context.Context, userID, role string) error
}

// Config wires the session handler.
type Config struct {
	Auth          Authenticator
	Store         *session.Store
	Tokens        *session.Tokens
	Audit         Auditor
	CookieName    string
	SecureCookies bool
	Logger        *logging.Logger
}

// Handler signs users in and out.
type Handler struct {
	auth       Authenticator
	store      *session.Store
	tokens     *session.Tokens
	audit      Auditor
	cookieName string
	secure     bool
	logger     *logging.Logger
	now        func() time.Time
}

// NewHandler creates a session handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Auth == nil || cfg.Store == nil || cfg.Tokens == nil {
		panic("auth: authenticator, store and tokens are required")
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "curasync_session"
	}
	return &Handler{
		auth:       cfg.Auth,
		store:      cfg.Store,
		tokens:     cfg.Tokens,
		audit:      cfg.Audit,
		cookieName: cookieName,
		secure:     cfg.SecureCookies,
		logger:     cfg.Logger.Component("auth"),
		now:        time.Now,
	}
}

// Register mounts the session routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/session", h.Login)
	r.Get("/session", h.Current)
	r.Delete("/session", h.Logout)
}

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned after sign-in and by GET /api/session.
type SessionResponse struct {
	User      clinicapi.User `json:"user"`
	Token     string         `json:"token,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
}

// Login checks credentials, caches the user for the new session and sets the
// session cookie.
// POST /api/session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": NoticeInvalidCredentials})
		return
	}

	ctx := r.Context()
	user, err := h.auth.LoginUser(ctx, req.Email, req.Password)
	if err != nil || user == nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": NoticeInvalidCredentials})
		return
	}

	sessionID := session.NewSessionID()
	if err := h.store.SetCurrentUser(ctx, sessionID, user); err != nil {
		h.logger.Error("failed to store session user", "user_id", user.ID, "error", err)
		http.Error(w, `{"error": "failed to start session"}`, http.StatusInternalServerError)
		return
	}
	token, expiresAt, err := h.tokens.Issue(sessionID)
	if err != nil {
		h.logger.Error("failed to issue session token", "user_id", user.ID, "error", err)
		http.Error(w, `{"error": "failed to start session"}`, http.StatusInternalServerError)
		return
	}

	if h.audit != nil {
		if err := h.audit.LogLogin(ctx, user.ID, string(user.Role)); err != nil {
			h.logger.Warn("failed to audit login", "user_id", user.ID, "error", err)
		}
	}

	h.setCookie(w, token, expiresAt)
	h.logger.Info("user signed in", "user_id", user.ID, "role", user.Role)
	resp := SessionResponse{User: user.Sanitized(), Token: token}
	if !expiresAt.IsZero() {
		resp.ExpiresAt = &expiresAt
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Current returns the signed-in user.
// GET /api/session
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{User: user.Sanitized()})
}

// Logout drops the cached user and clears the cookie. Signing out twice is
// not an error.
// DELETE /api/session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := session.SessionIDFromContext(r.Context()); ok {
		if err := h.store.SetCurrentUser(r.Context(), sessionID, nil); err != nil {
			h.logger.Error("failed to clear session user", "error", err)
			http.Error(w, `{"error": "failed to end session"}`, http.StatusInternalServerError)
			return
		}
	}
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// setCookie writes the session cookie. A zero expiry (no session TTL) leaves
// a browser-session cookie that lives until the browser closes or logout.
func (h *Handler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires
		cookie.MaxAge = int(expires.Sub(h.now()).Seconds())
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
