package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Storage.Get when the key is absent or expired.
var ErrNotFound = errors.New("session: key not found")

// Storage is a byte-oriented key/value backend for session state.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStorage keeps session state in Redis.
type RedisStorage struct {
	redis *redis.Client
}

// NewRedisStorage wraps a Redis client.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{redis: client}
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	return data, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStorage is an in-process Storage for tests and local development.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
