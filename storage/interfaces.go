package storage

import (
	"context"
	"time"

	"github.com/dynamous/ragpipe/core"
)

// CheckpointStore persists the sync checkpoint. Implementations must make
// SaveCheckpoint atomic: a crash mid-save leaves the prior checkpoint
// intact, never a corrupted hybrid.
type CheckpointStore interface {
	// SaveCheckpoint replaces the stored checkpoint wholesale.
	SaveCheckpoint(ctx context.Context, checkpoint *core.SyncCheckpoint) error

	// LoadCheckpoint retrieves the current checkpoint.
	// Returns nil, nil if no checkpoint exists yet.
	LoadCheckpoint(ctx context.Context) (*core.SyncCheckpoint, error)

	// Close releases resources held by the store.
	Close() error
}

// ChunkRepository manages stored document chunks. For a given source the
// chunk set is always replaced as a whole, so repeated processing of
// unchanged content is idempotent.
type ChunkRepository interface {
	// ReplaceChunks deletes all existing chunks for sourceID and inserts
	// the new set in a single transaction.
	ReplaceChunks(ctx context.Context, sourceID string, chunks []*core.StoredChunk) error

	// DeleteChunks removes all chunks for sourceID.
	// Returns the number of chunks removed; removing an unknown source is
	// not an error.
	DeleteChunks(ctx context.Context, sourceID string) (int, error)

	// GetChunks retrieves the chunks for sourceID ordered by index.
	// Returns an empty slice for an unknown source.
	GetChunks(ctx context.Context, sourceID string) ([]*core.StoredChunk, error)

	// ListSources returns the IDs of all documents that currently have
	// chunks stored.
	ListSources(ctx context.Context) ([]string, error)

	// Close releases resources held by the repository.
	Close() error
}

// QueueRepository manages the insights task queue. All status transitions
// are single atomic operations; ClaimNext in particular must guarantee
// that no two callers can claim the same task.
type QueueRepository interface {
	// Enqueue creates a pending task for documentID. If a non-failed task
	// already exists for the document this is a no-op; a failed task is
	// re-armed to pending with attempts reset. The bool reports whether a
	// new task was created or re-armed.
	Enqueue(ctx context.Context, documentID string) (*core.QueueTask, bool, error)

	// ClaimNext atomically transitions the oldest eligible pending task to
	// processing and returns it. Tasks whose NotBefore lies in the future
	// are skipped. Returns ErrNoTask when nothing is claimable.
	ClaimNext(ctx context.Context) (*core.QueueTask, error)

	// Complete marks a processing task as completed.
	Complete(ctx context.Context, id core.ID) error

	// Fail records a failed attempt on a processing task. Attempts is
	// incremented; while attempts < maxAttempts the task returns to
	// pending with NotBefore set to retryAt, otherwise it becomes failed.
	Fail(ctx context.Context, id core.ID, taskErr string, retryAt time.Time, maxAttempts int) error

	// ResetFailed transitions every failed task back to pending with
	// attempts reset to zero. Returns the number of tasks reset.
	ResetFailed(ctx context.Context) (int, error)

	// ReclaimStale returns tasks stuck in processing longer than olderThan
	// to pending. Used to recover tasks abandoned by a timed-out shutdown.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)

	// GetTask retrieves a task by ID. Returns ErrNotFound if absent.
	GetTask(ctx context.Context, id core.ID) (*core.QueueTask, error)

	// GetTaskByDocument retrieves the task for a document.
	// Returns ErrNotFound if the document has never been enqueued.
	GetTaskByDocument(ctx context.Context, documentID string) (*core.QueueTask, error)

	// Stats returns current queue counts and the age of the oldest
	// pending task.
	Stats(ctx context.Context) (*core.QueueStats, error)

	// Close releases resources held by the repository.
	Close() error
}

// InsightRepository persists generated insights.
type InsightRepository interface {
	// AddInsights stores one or more insights, generating sequence IDs and
	// setting CreatedAt where unset. Returns the insights with IDs
	// populated.
	AddInsights(ctx context.Context, insights ...*core.Insight) ([]*core.Insight, error)

	// GetRecentInsights returns up to limit insights, newest first.
	GetRecentInsights(ctx context.Context, limit int) ([]*core.Insight, error)

	// GetInsightsByDocument returns all insights produced from a document.
	GetInsightsByDocument(ctx context.Context, documentID string) ([]*core.Insight, error)

	// Close releases resources held by the repository.
	Close() error
}
