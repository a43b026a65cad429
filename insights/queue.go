// Copyright 2025 Dynamous Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 30 * time.Second
)

// Queue is the task-queue service. It wraps the queue repository with the
// retry policy: how many attempts a task gets and how its backoff windows
// grow. Backoff is persisted on the task's NotBefore, so a restarted
// worker honors the schedule.
type Queue struct {
	tasks  storage.QueueRepository
	chunks storage.ChunkRepository
	logger *slog.Logger

	maxAttempts int
	backoffBase time.Duration
}

// QueueOption is a functional option for configuring a Queue.
type QueueOption func(*Queue)

// WithMaxAttempts sets how many attempts a task gets before it is failed
// permanently.
func WithMaxAttempts(n int) QueueOption {
	return func(q *Queue) {
		q.maxAttempts = n
	}
}

// WithBackoffBase sets the base retry delay; it doubles with every failed
// attempt.
func WithBackoffBase(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.backoffBase = d
	}
}

// NewQueue creates the queue service.
func NewQueue(tasks storage.QueueRepository, chunks storage.ChunkRepository, opts ...QueueOption) (*Queue, error) {
	if tasks == nil {
		return nil, ErrQueueRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}

	q := &Queue{
		tasks:       tasks,
		chunks:      chunks,
		logger:      slog.Default().With("component", "insights-queue"),
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue creates a pending task for a document. Idempotent: an existing
// non-failed task makes this a no-op; a failed task is re-armed.
func (q *Queue) Enqueue(ctx context.Context, documentID string) (*core.QueueTask, bool, error) {
	return q.tasks.Enqueue(ctx, documentID)
}

// Claim atomically claims the oldest eligible pending task.
// Returns storage.ErrNoTask when nothing is claimable.
func (q *Queue) Claim(ctx context.Context) (*core.QueueTask, error) {
	return q.tasks.ClaimNext(ctx)
}

// Complete marks a claimed task as done.
func (q *Queue) Complete(ctx context.Context, id core.ID) error {
	return q.tasks.Complete(ctx, id)
}

// Fail records a failed attempt on a claimed task, scheduling the retry
// window per the backoff policy.
func (q *Queue) Fail(ctx context.Context, task *core.QueueTask, taskErr error) error {
	retryAt := time.Now().UTC().Add(q.backoffDelay(task.Attempts))
	return q.tasks.Fail(ctx, task.Id, taskErr.Error(), retryAt, q.maxAttempts)
}

// Stats returns current queue counts.
func (q *Queue) Stats(ctx context.Context) (*core.QueueStats, error) {
	return q.tasks.Stats(ctx)
}

// ResetFailed re-arms every permanently failed task.
func (q *Queue) ResetFailed(ctx context.Context) (int, error) {
	return q.tasks.ResetFailed(ctx)
}

// ReclaimStale returns tasks abandoned in processing, typically by a
// worker that shut down past its drain timeout, to pending.
func (q *Queue) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return q.tasks.ReclaimStale(ctx, olderThan)
}

// EnqueueUnprocessed enqueues a task for every chunked document that has
// no live or completed task. Used to retroactively analyze documents
// ingested before the insights worker existed.
func (q *Queue) EnqueueUnprocessed(ctx context.Context) (int, error) {
	sources, err := q.chunks.ListSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chunked documents: %w", err)
	}

	enqueued := 0
	for _, sourceID := range sources {
		task, err := q.tasks.GetTaskByDocument(ctx, sourceID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return enqueued, err
		}
		if task != nil && task.Status != core.TaskFailed {
			continue
		}

		if _, created, err := q.tasks.Enqueue(ctx, sourceID); err != nil {
			return enqueued, err
		} else if created {
			enqueued++
		}
	}

	q.logger.Info("retroactive enqueue complete", "documents", len(sources), "enqueued", enqueued)
	return enqueued, nil
}

// backoffDelay computes the retry delay after the given number of
// completed attempts: backoffBase * 2^attempts.
func (q *Queue) backoffDelay(attempts int) time.Duration {
	delay := q.backoffBase
	for i := 0; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
