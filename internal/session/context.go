package session

import (
	"context"

	"github.com/curasync/portal/internal/clinicapi"
)

type ctxKey string

const (
	userKey      ctxKey = "curasync.session_user"
	sessionIDKey ctxKey = "curasync.session_id"
)

// WithUser stores the signed-in user in context.
func WithUser(ctx context.Context, user *clinicapi.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the signed-in user if present.
func UserFromContext(ctx context.Context) (*clinicapi.User, bool) {
	user, ok := ctx.Value(userKey).(*clinicapi.User)
	return user, ok && user != nil
}

// WithSessionID stores the session id in context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext extracts the session id if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(sessionIDKey)
	if val == nil {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}
