// Package session holds the signed-in user for a browser session. The user
// is cached as a JSON blob keyed by session id and is not revalidated
// against the clinic API.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/pkg/logging"
)

// KeyPrefix namespaces the cached user blob.
const KeyPrefix = "curasync_current_user"

// Store reads and writes the current user of a session.
type Store struct {
	storage Storage
	ttl     time.Duration
	logger  *logging.Logger
}

// NewStore creates a session store. A zero ttl keeps entries until logout.
func NewStore(storage Storage, ttl time.Duration, logger *logging.Logger) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{storage: storage, ttl: ttl, logger: logger.Component("session")}
}

func (s *Store) key(sessionID string) string {
	return KeyPrefix + ":" + sessionID
}

// CurrentUser returns the cached user, or nil when the session is logged
// out. A corrupt blob is dropped and treated as logged out.
func (s *Store) CurrentUser(ctx context.Context, sessionID string) (*clinicapi.User, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	data, err := s.storage.Get(ctx, s.key(sessionID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load user: %w", err)
	}
	var user clinicapi.User
	if err := json.Unmarshal(data, &user); err != nil {
		s.logger.Warn("discarding unreadable session user", "error", err)
		_ = s.storage.Delete(ctx, s.key(sessionID))
		return nil, nil
	}
	return &user, nil
}

// SetCurrentUser caches user for the session. A nil user removes the entry.
// Credentials are never cached.
func (s *Store) SetCurrentUser(ctx context.Context, sessionID string, user *clinicapi.User) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session: session id required")
	}
	if user == nil {
		if err := s.storage.Delete(ctx, s.key(sessionID)); err != nil {
			return fmt.Errorf("session: clear user: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(user.Sanitized())
	if err != nil {
		return fmt.Errorf("session: marshal user: %w", err)
	}
	if err := s.storage.Set(ctx, s.key(sessionID), data, s.ttl); err != nil {
		return fmt.Errorf("session: save user: %w", err)
	}
	return nil
}
