package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/internal/session"
)

type sessionFixture struct {
	tokens *session.Tokens
	store  *session.Store
	mw     func(http.Handler) http.Handler
}

func newSessionFixture(t *testing.T) sessionFixture {
	t.Helper()
	tokens, err := session.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	store := session.NewStore(session.NewMemoryStorage(), time.Hour, nil)
	return sessionFixture{
		tokens: tokens,
		store:  store,
		mw:     Session(SessionConfig{Tokens: tokens, Store: store, CookieName: "curasync_session"}),
	}
}

func (f sessionFixture) signIn(t *testing.T, user clinicapi.User) string {
	t.Helper()
	sid := session.NewSessionID()
	require.NoError(t, f.store.SetCurrentUser(context.Background(), sid, &user))
	token, _, err := f.tokens.Issue(sid)
	require.NoError(t, err)
	return token
}

func whoAmI(w http.ResponseWriter, r *http.Request) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(user.ID))
}

func TestSessionFromCookie(t *testing.T) {
	f := newSessionFixture(t)
	token := f.signIn(t, clinicapi.User{ID: "p1", Role: clinicapi.RolePatient})

	req := httptest.NewRequest(http.MethodGet, "/api/header", nil)
	req.AddCookie(&http.Cookie{Name: "curasync_session", Value: token})
	rec := httptest.NewRecorder()
	f.mw(http.HandlerFunc(whoAmI)).ServeHTTP(rec, req)

	assert.Equal(t, "p1", rec.Body.String())
}

func TestSessionFromBearer(t *testing.T) {
	f := newSessionFixture(t)
	token := f.signIn(t, clinicapi.User{ID: "d1", Role: clinicapi.RoleDoctor})

	req := httptest.NewRequest(http.MethodGet, "/api/header", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.mw(http.HandlerFunc(whoAmI)).ServeHTTP(rec, req)

	assert.Equal(t, "d1", rec.Body.String())
}

func TestSessionAnonymousCases(t *testing.T) {
	f := newSessionFixture(t)
	loggedOut, _, err := f.tokens.Issue(session.NewSessionID())
	require.NoError(t, err)

	tests := map[string]string{
		"no token":      "",
		"garbage token": "not-a-jwt",
		"logged out":    loggedOut,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/header", nil)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			f.mw(http.HandlerFunc(whoAmI)).ServeHTTP(rec, req)
			assert.Equal(t, "anonymous", rec.Body.String())
		})
	}
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(http.HandlerFunc(whoAmI))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/header", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/header", nil)
	req = req.WithContext(session.WithUser(req.Context(), &clinicapi.User{ID: "n1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "n1", rec.Body.String())
}

func TestSessionToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, SessionToken(req, "c"))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", SessionToken(req, "c"))

	req.AddCookie(&http.Cookie{Name: "c", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", SessionToken(req, "c"))
}
