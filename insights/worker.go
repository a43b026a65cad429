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
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/dynamous/ragpipe/ai"
	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultConcurrency     = 4
	defaultShutdownTimeout = 30 * time.Second
	defaultStatusInterval  = time.Minute
	defaultStaleAge        = 10 * time.Minute
)

// Worker drains the insights queue. Each poll claims up to the pool's
// free capacity; a claimed task loads the document's chunk text, runs the
// insight generator, stores the results and completes or fails the task.
//
// Cancellation drains gracefully: in-flight tasks get shutdownTimeout to
// finish, then the worker exits. Tasks abandoned past the timeout stay in
// processing until ReclaimStale returns them to pending.
type Worker struct {
	queue     *Queue
	chunks    storage.ChunkRepository
	insights  storage.InsightRepository
	generator ai.InsightGenerator
	pool      *ants.Pool
	logger    *slog.Logger

	pollInterval    time.Duration
	shutdownTimeout time.Duration
	statusInterval  time.Duration
	staleAge        time.Duration

	wg sync.WaitGroup
}

// WorkerOption is a functional option for configuring a Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets how often the worker polls for claimable tasks.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.pollInterval = d
	}
}

// WithShutdownTimeout bounds the graceful drain on cancellation.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.shutdownTimeout = d
	}
}

// WithStatusInterval sets how often queue status is logged.
func WithStatusInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.statusInterval = d
	}
}

// WithStaleAge sets how long a task may sit in processing before the
// worker reclaims it as abandoned.
func WithStaleAge(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.staleAge = d
	}
}

// NewWorker creates an insights worker with a pool of maxConcurrent
// handlers.
func NewWorker(queue *Queue, chunks storage.ChunkRepository, insights storage.InsightRepository, generator ai.InsightGenerator, maxConcurrent int, opts ...WorkerOption) (*Worker, error) {
	if queue == nil {
		return nil, ErrQueueServiceRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if insights == nil {
		return nil, ErrInsightRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if maxConcurrent <= 0 {
		return nil, ErrInvalidConcurrency
	}

	pool, err := ants.NewPool(maxConcurrent)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		queue:           queue,
		chunks:          chunks,
		insights:        insights,
		generator:       generator,
		pool:            pool,
		logger:          slog.Default().With("component", "insights-worker"),
		pollInterval:    defaultPollInterval,
		shutdownTimeout: defaultShutdownTimeout,
		statusInterval:  defaultStatusInterval,
		staleAge:        defaultStaleAge,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run polls until the context is canceled, then drains.
// Returns nil on a clean drain.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"poll_interval", w.pollInterval,
		"concurrency", w.pool.Cap())

	// Recover tasks a previous worker abandoned.
	if reclaimed, err := w.queue.ReclaimStale(ctx, w.staleAge); err != nil {
		w.logger.Warn("stale task reclaim failed", "err", err)
	} else if reclaimed > 0 {
		w.logger.Info("reclaimed stale tasks", "count", reclaimed)
	}

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	status := time.NewTicker(w.statusInterval)
	defer status.Stop()

	w.claimBatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return w.drain()
		case <-poll.C:
			w.claimBatch(ctx)
		case <-status.C:
			w.logStatus(ctx)
		}
	}
}

// Close releases the worker pool.
func (w *Worker) Close() {
	w.pool.Release()
}

// claimBatch claims as many eligible tasks as the pool has free slots.
func (w *Worker) claimBatch(ctx context.Context) {
	for free := w.pool.Free(); free > 0; free-- {
		task, err := w.queue.Claim(ctx)
		if err != nil {
			if !errors.Is(err, storage.ErrNoTask) {
				w.logger.Error("claim failed", "err", err)
			}
			return
		}

		// Handlers keep the values of ctx but not its cancellation, so a
		// shutdown lets in-flight tasks finish within the drain timeout.
		taskCtx := context.WithoutCancel(ctx)

		w.wg.Add(1)
		submitErr := w.pool.Submit(func() {
			defer w.wg.Done()
			w.handle(taskCtx, task)
		})
		if submitErr != nil {
			w.wg.Done()
			w.logger.Error("pool submit failed", "task", task.Id, "err", submitErr)
			if failErr := w.queue.Fail(ctx, task, submitErr); failErr != nil {
				w.logger.Error("task fail update failed", "task", task.Id, "err", failErr)
			}
			return
		}
	}
}

// handle runs one claimed task end to end.
func (w *Worker) handle(ctx context.Context, task *core.QueueTask) {
	logger := w.logger.With("task", task.Id, "document", task.DocumentID)

	chunks, err := w.chunks.GetChunks(ctx, task.DocumentID)
	if err != nil {
		w.failTask(ctx, task, err, logger)
		return
	}
	if len(chunks) == 0 {
		// The document was removed between enqueue and claim; there is
		// nothing to analyze.
		logger.Info("no chunks for document, completing task")
		w.completeTask(ctx, task, logger)
		return
	}

	title, content := assembleDocument(chunks)

	generated, err := w.generator.GenerateInsights(ctx, title, content)
	if err != nil {
		w.failTask(ctx, task, err, logger)
		return
	}

	if len(generated) > 0 {
		records := make([]*core.Insight, len(generated))
		for i, g := range generated {
			records[i] = &core.Insight{
				Type:             g.Type,
				Title:            g.Title,
				Description:      g.Description,
				Priority:         g.Priority,
				Status:           "new",
				Confidence:       g.Confidence,
				SourceDocumentID: task.DocumentID,
			}
		}
		if _, err := w.insights.AddInsights(ctx, records...); err != nil {
			w.failTask(ctx, task, err, logger)
			return
		}
	}

	logger.Info("task complete", "insights", len(generated))
	w.completeTask(ctx, task, logger)
}

func (w *Worker) completeTask(ctx context.Context, task *core.QueueTask, logger *slog.Logger) {
	if err := w.queue.Complete(ctx, task.Id); err != nil {
		logger.Error("task completion update failed", "err", err)
	}
}

func (w *Worker) failTask(ctx context.Context, task *core.QueueTask, taskErr error, logger *slog.Logger) {
	logger.Warn("task failed", "attempt", task.Attempts+1, "err", taskErr)
	if err := w.queue.Fail(ctx, task, taskErr); err != nil {
		logger.Error("task fail update failed", "err", err)
	}
}

// drain waits for in-flight handlers, bounded by the shutdown timeout.
func (w *Worker) drain() error {
	w.logger.Info("draining worker", "in_flight", w.pool.Running())

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker drained cleanly")
		return nil
	case <-time.After(w.shutdownTimeout):
		// Abandoned tasks stay in processing; the next worker's
		// ReclaimStale returns them to pending.
		w.logger.Warn("drain timeout, abandoning in-flight tasks", "in_flight", w.pool.Running())
		return nil
	}
}

func (w *Worker) logStatus(ctx context.Context) {
	stats, err := w.queue.Stats(ctx)
	if err != nil {
		w.logger.Error("queue stats failed", "err", err)
		return
	}
	w.logger.Info("queue status",
		"pending", stats.Pending,
		"processing", stats.Processing,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"oldest_pending", stats.OldestPendingAge)
}

// assembleDocument joins chunk text back into one document for the
// generator. Chunks overlap at the seams; that redundancy is harmless
// for insight extraction.
func assembleDocument(chunks []*core.StoredChunk) (title, content string) {
	title = chunks[0].SourceID
	if name, ok := chunks[0].Metadata["name"]; ok && name != "" {
		title = name
	}

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Content
	}
	return title, strings.Join(parts, "\n\n")
}
