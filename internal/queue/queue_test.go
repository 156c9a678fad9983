package queue

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testQueue(t *testing.T, q Queue) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := fmt.Sprintf("job-%d", time.Now().UnixNano())
	job := &Job{ID: id, Kind: KindExecute, Circuit: "mixcolumns", InputHandle: "abc"}
	require.NoError(t, q.Push(ctx, job))
	require.Equal(t, StatusPending, job.Status)
	require.False(t, job.CreatedAt.IsZero())

	popped, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, id, popped.ID)
	require.Equal(t, KindExecute, popped.Kind)
	require.Equal(t, "mixcolumns", popped.Circuit)

	popped.Status = StatusCompleted
	popped.ResultHandle = "def"
	require.NoError(t, q.Update(ctx, popped))

	got, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, "def", got.ResultHandle)

	_, err = q.Get(ctx, "missing-"+id)
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()
	testQueue(t, q)
}

func TestMemoryQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)
	defer q.Close()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, &Job{ID: id, Kind: KindDecompose}))
	}
	for _, id := range []string{"a", "b", "c"} {
		job, err := q.Pop(ctx)
		require.NoError(t, err)
		require.Equal(t, id, job.ID)
	}
}

func TestMemoryQueuePopBlocks(t *testing.T) {
	q := NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	_, err = q.Pop(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestMemoryQueueFailedPushLeavesNoRecord(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Push(context.Background(), &Job{ID: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Push(ctx, &Job{ID: "full"}), context.DeadlineExceeded)
	_, err := q.Get(context.Background(), "full")
	require.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, q.Close())
	require.ErrorIs(t, q.Push(context.Background(), &Job{ID: "late"}), ErrClosed)
	_, err = q.Get(context.Background(), "late")
	require.ErrorIs(t, err, ErrJobNotFound)

	first, err := q.Get(context.Background(), "first")
	require.NoError(t, err)
	require.Equal(t, StatusPending, first.Status)
}

func TestMemoryQueueUpdateUnknown(t *testing.T) {
	q := NewMemoryQueue(1)
	require.ErrorIs(t, q.Update(context.Background(), &Job{ID: "nope"}), ErrJobNotFound)
}

func TestJobStatusString(t *testing.T) {
	require.Equal(t, "failed", StatusFailed.String())
	require.Equal(t, "JobStatus(9)", JobStatus(9).String())
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("LINCIRCUIT_REDIS_ADDR")
	if addr == "" {
		t.Skip("LINCIRCUIT_REDIS_ADDR not set")
	}

	q, err := NewRedisQueue(RedisConfig{Addr: addr}, fmt.Sprintf("test-%d", time.Now().UnixNano()))
	require.NoError(t, err)
	defer q.Close()
	testQueue(t, q)
}
