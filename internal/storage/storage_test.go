package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testStorage(t *testing.T, s Storage) {
	ctx := context.Background()
	blob := []byte("register file")

	h, err := s.Store(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, ComputeHandle(blob), h)
	require.NoError(t, h.Validate())

	again, err := s.Store(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, h, again)

	ok, err := s.Exists(ctx, h)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Load(ctx, h)
	require.NoError(t, err)
	require.Equal(t, blob, got)

	require.NoError(t, s.Delete(ctx, h))
	require.ErrorIs(t, s.Delete(ctx, h), ErrNotFound)

	_, err = s.Load(ctx, h)
	require.ErrorIs(t, err, ErrNotFound)

	ok, err = s.Exists(ctx, h)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage(1)
	defer s.Close()
	testStorage(t, s)

	_, err := s.Store(context.Background(), make([]byte, 2*1024*1024))
	require.ErrorIs(t, err, ErrStorageFull)
	require.Zero(t, s.Size())
}

func TestMemoryStorageCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(1)

	blob := []byte{1, 2, 3}
	h, err := s.Store(ctx, blob)
	require.NoError(t, err)
	blob[0] = 9

	got, err := s.Load(ctx, h)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
	got[1] = 9

	got, err = s.Load(ctx, h)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestFileStorage(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	testStorage(t, s)
}

func TestFileStorageRejectsBadHandles(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, h := range []Handle{"", "../../etc/passwd", Handle(make([]byte, 64))} {
		_, err := s.Load(context.Background(), h)
		require.ErrorIs(t, err, ErrInvalidHandle)
	}
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("LINCIRCUIT_REDIS_ADDR")
	if addr == "" {
		t.Skip("LINCIRCUIT_REDIS_ADDR not set")
	}

	s, err := NewRedisStorage(RedisConfig{Addr: addr}, time.Minute)
	require.NoError(t, err)
	defer s.Close()
	testStorage(t, s)
}
