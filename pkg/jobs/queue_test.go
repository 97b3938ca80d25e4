package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueProcessesJobsSequentially(t *testing.T) {
	var (
		mu      sync.Mutex
		seen    []string
		running int32
		overlap int32
		done    = make(chan struct{}, 3)
	)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		atomic.AddInt32(&running, -1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 3, Logger: zap.NewNop()})

	q.Start(context.Background())
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	q.Stop()

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Zero(t, atomic.LoadInt32(&overlap))
}

func TestQueueWithoutRetriesDropsFailedJob(t *testing.T) {
	var calls int32
	done := make(chan struct{}, 1)
	q := NewQueue("no-retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		done <- struct{}{}
		return errors.New("boom")
	}, QueueConfig{Workers: 1, MaxRetries: 0, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "x"}))
	<-done
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueRetriesUntilLimit(t *testing.T) {
	var calls int32
	done := make(chan struct{}, 3)
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		done <- struct{}{}
		return errors.New("boom")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "x"}))
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for retries")
		}
	}
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "x"}))
	require.Error(t, q.TryEnqueue(Job{ID: "x"}))
}

func TestTryEnqueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		if job.ID == "first" {
			close(started)
		}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "first"}))
	<-started
	require.NoError(t, q.TryEnqueue(Job{ID: "second"}))

	err := q.TryEnqueue(Job{ID: "third"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	q.Stop()
}
