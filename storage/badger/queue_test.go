package badger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

func TestQueueRepository_EnqueueIdempotent(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	task, created, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.True(t, created)
	assert.Equal(t, core.TaskPending, task.Status)
	assert.NotZero(t, task.Id)

	// Second enqueue for the same document is a no-op.
	again, created, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, task.Id, again.Id)

	stats, err := stores.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestQueueRepository_EnqueueRearmsFailed(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	task, _, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)

	claimed, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, stores.Queue.Fail(ctx, claimed.Id, "boom", time.Time{}, 1))

	failed, err := stores.Queue.GetTask(ctx, task.Id)
	require.NoError(t, err)
	require.Equal(t, core.TaskFailed, failed.Status)

	rearmed, created, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, task.Id, rearmed.Id)
	assert.Equal(t, core.TaskPending, rearmed.Status)
	assert.Zero(t, rearmed.Attempts)
	assert.Empty(t, rearmed.LastError)
}

func TestQueueRepository_ClaimNext(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	_, err = stores.Queue.ClaimNext(ctx)
	assert.ErrorIs(t, err, storage.ErrNoTask)

	first, _, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)
	_, _, err = stores.Queue.Enqueue(ctx, "docs/b.txt")
	require.NoError(t, err)

	// Oldest pending task comes out first.
	claimed, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Id, claimed.Id)
	assert.Equal(t, core.TaskProcessing, claimed.Status)

	claimed2, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "docs/b.txt", claimed2.DocumentID)

	_, err = stores.Queue.ClaimNext(ctx)
	assert.ErrorIs(t, err, storage.ErrNoTask)
}

func TestQueueRepository_ClaimNextSkipsBackoffWindow(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	_, _, err = stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)

	claimed, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)

	// Fail with a retry window an hour out; the task is pending but not
	// claimable until then.
	retryAt := time.Now().Add(time.Hour)
	require.NoError(t, stores.Queue.Fail(ctx, claimed.Id, "timeout", retryAt, 3))

	task, err := stores.Queue.GetTask(ctx, claimed.Id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskPending, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, "timeout", task.LastError)

	_, err = stores.Queue.ClaimNext(ctx)
	assert.ErrorIs(t, err, storage.ErrNoTask)
}

func TestQueueRepository_AtMostOneClaim(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	_, _, err = stores.Queue.Enqueue(ctx, "docs/contested.txt")
	require.NoError(t, err)

	const claimants = 10
	var wg sync.WaitGroup
	results := make(chan error, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stores.Queue.ClaimNext(ctx)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrNoTask)
		}
	}
	assert.Equal(t, 1, succeeded)

	stats, err := stores.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processing)
	assert.Zero(t, stats.Pending)
}

func TestQueueRepository_Complete(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	task, _, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)

	// Completing a pending task is an invalid transition.
	err = stores.Queue.Complete(ctx, task.Id)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	claimed, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, stores.Queue.Complete(ctx, claimed.Id))

	done, err := stores.Queue.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskCompleted, done.Status)
}

func TestQueueRepository_RetryExhaustion(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()
	const maxAttempts = 3

	task, _, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		claimed, err := stores.Queue.ClaimNext(ctx)
		require.NoError(t, err)
		require.NoError(t, stores.Queue.Fail(ctx, claimed.Id, "llm unavailable", time.Now(), maxAttempts))
	}

	final, err := stores.Queue.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskFailed, final.Status)
	assert.Equal(t, maxAttempts, final.Attempts)

	_, err = stores.Queue.ClaimNext(ctx)
	assert.ErrorIs(t, err, storage.ErrNoTask)
}

func TestQueueRepository_ResetFailed(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	for _, doc := range []string{"docs/a.txt", "docs/b.txt"} {
		_, _, err := stores.Queue.Enqueue(ctx, doc)
		require.NoError(t, err)
		claimed, err := stores.Queue.ClaimNext(ctx)
		require.NoError(t, err)
		require.NoError(t, stores.Queue.Fail(ctx, claimed.Id, "boom", time.Time{}, 1))
	}

	reset, err := stores.Queue.ResetFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reset)

	stats, err := stores.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.Zero(t, stats.Failed)

	claimed, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed.Attempts)
}

func TestQueueRepository_ReclaimStale(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	_, _, err = stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)
	claimed, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)

	// The claim is fresh; nothing to reclaim yet.
	reclaimed, err := stores.Queue.ReclaimStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, reclaimed)

	reclaimed, err = stores.Queue.ReclaimStale(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	task, err := stores.Queue.GetTask(ctx, claimed.Id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskPending, task.Status)
}

func TestQueueRepository_Stats(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	stats, err := stores.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.OldestPendingAge)

	for _, doc := range []string{"a", "b", "c"} {
		_, _, err := stores.Queue.Enqueue(ctx, doc)
		require.NoError(t, err)
	}
	claimed, err := stores.Queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, stores.Queue.Complete(ctx, claimed.Id))

	stats, err = stores.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.Zero(t, stats.Processing)
	assert.Equal(t, 1, stats.Completed)
	assert.Greater(t, stats.OldestPendingAge, time.Duration(0))
}

func TestQueueRepository_GetTaskByDocument(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	_, err = stores.Queue.GetTaskByDocument(ctx, "docs/a.txt")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	task, _, err := stores.Queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)

	got, err := stores.Queue.GetTaskByDocument(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, task.Id, got.Id)
}
