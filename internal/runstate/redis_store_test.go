package runstate

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*RedisStore, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return NewRedisStore(client, "test:"), m
}

func TestRedisStore_LockIsExclusive(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "integrationconfiginstance", "run-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Acquire(ctx, "integrationconfiginstance", "run-2", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	holder, err := s.Holder(ctx, "integrationconfiginstance")
	require.NoError(t, err)
	require.Equal(t, "run-1", holder)

	// a different collection has its own lock
	ok, err = s.Acquire(ctx, "otherinstances", "run-2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStore_ReleaseOnlyByOwner(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "c", "run-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, s.Release(ctx, "c", "run-2"), ErrLockNotHeld)
	require.NoError(t, s.Release(ctx, "c", "run-1"))

	holder, err := s.Holder(ctx, "c")
	require.NoError(t, err)
	require.Empty(t, holder)
}

func TestRedisStore_LockExpires(t *testing.T) {
	s, m := newStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "c", "run-1", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// advance miniredis clock past TTL
	m.FastForward(3 * time.Second)

	ok, err = s.Acquire(ctx, "c", "run-2", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStore_Report(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	type report struct {
		Response bool   `json:"response"`
		Message  string `json:"message"`
	}
	var got report
	found, err := s.LastReport(ctx, "c", &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.SaveReport(ctx, "c", report{Response: true, Message: "fixed"}))

	found, err = s.LastReport(ctx, "c", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, report{Response: true, Message: "fixed"}, got)
}
