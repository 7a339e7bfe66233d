package jobs

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	done := make(chan struct{})
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&handled, 1) == 2 {
			close(done)
		}
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})

	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "a", Type: "test"}))
	require.NoError(t, queue.Enqueue(Job{ID: "b", Type: "test"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not processed")
	}
}

func TestEnqueueRequiresStart(t *testing.T) {
	queue := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	err := queue.Enqueue(Job{ID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestEnqueueFailsFastWhenBufferFull(t *testing.T) {
	release := make(chan struct{})
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	queue.Start(context.Background())
	defer queue.Stop()
	defer close(release)

	// With the single worker parked on a slow job and the buffer occupied,
	// further submissions must be rejected immediately rather than stalling
	// the caller.
	deadline := time.Now().Add(2 * time.Second)
	var fullErr error
	for time.Now().Before(deadline) {
		start := time.Now()
		err := queue.Enqueue(Job{ID: "x", Type: "test"})
		require.Less(t, time.Since(start), 200*time.Millisecond, "Enqueue must not block")
		if err != nil {
			fullErr = err
			break
		}
	}
	require.Error(t, fullErr, "expected a queue-full rejection once worker and buffer were saturated")
	assert.True(t, strings.Contains(fullErr.Error(), "full"), "got: %v", fullErr)
}

func TestFailedJobNotRequeuedWhenRetriesDisabled(t *testing.T) {
	var attempts int32
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("generator unavailable")
	}, QueueConfig{Workers: 1, BufferSize: 2, MaxRetries: 0, RetryDelay: 10 * time.Millisecond})

	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "a", Type: "test"}))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}
