package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curasync/portal/internal/clinicapi"
)

func newRedisStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStorage(client), mr
}

func TestStoreRoundTripThroughRedis(t *testing.T) {
	storage, mr := newRedisStorage(t)
	store := NewStore(storage, time.Hour, nil)
	ctx := context.Background()

	user := &clinicapi.User{ID: "p1", Email: "pat@example.com", Password: "secret", FirstName: "Pat", LastName: "Lee", Role: clinicapi.RolePatient}
	require.NoError(t, store.SetCurrentUser(ctx, "sid-1", user))

	raw, err := mr.Get("curasync_current_user:sid-1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret")
	assert.Equal(t, time.Hour, mr.TTL("curasync_current_user:sid-1"))

	got, err := store.CurrentUser(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, clinicapi.RolePatient, got.Role)
	assert.Empty(t, got.Password)
}

func TestStoreLoggedOut(t *testing.T) {
	store := NewStore(NewMemoryStorage(), 0, nil)
	ctx := context.Background()

	got, err := store.CurrentUser(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.CurrentUser(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreNilUserRemovesEntry(t *testing.T) {
	storage, mr := newRedisStorage(t)
	store := NewStore(storage, 0, nil)
	ctx := context.Background()

	require.NoError(t, store.SetCurrentUser(ctx, "sid-2", &clinicapi.User{ID: "d1", Role: clinicapi.RoleDoctor}))
	require.NoError(t, store.SetCurrentUser(ctx, "sid-2", nil))
	assert.False(t, mr.Exists("curasync_current_user:sid-2"))

	got, err := store.CurrentUser(ctx, "sid-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreCorruptBlobIsDropped(t *testing.T) {
	storage, mr := newRedisStorage(t)
	require.NoError(t, mr.Set("curasync_current_user:sid-3", "{not json"))
	store := NewStore(storage, 0, nil)

	got, err := store.CurrentUser(context.Background(), "sid-3")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("curasync_current_user:sid-3"))
}

func TestStoreRequiresSessionID(t *testing.T) {
	store := NewStore(nil, 0, nil)
	assert.Error(t, store.SetCurrentUser(context.Background(), " ", &clinicapi.User{ID: "x"}))
}

func TestRedisStorageExpiry(t *testing.T) {
	storage, mr := newRedisStorage(t)
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, "k", []byte("v"), time.Minute))

	mr.FastForward(2 * time.Minute)
	_, err := storage.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorageUnavailable(t *testing.T) {
	storage, mr := newRedisStorage(t)
	mr.Close()
	_, err := storage.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorageExpiry(t *testing.T) {
	storage := NewMemoryStorage()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	storage.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = storage.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.Set(ctx, "forever", []byte("v"), 0))
	now = now.Add(24 * time.Hour)
	_, err = storage.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, storage.Delete(ctx, "forever"))
	_, err = storage.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrNotFound)
}
