package watcher

import (
	"context"

	"github.com/dynamous/ragpipe/core"
)

// Result is the outcome of one change check. Candidate is the checkpoint
// to persist once every change in Changes has been handled; items the
// source could not account for this cycle are absent from it, so they are
// revisited on the next check. Warnings carries non-fatal per-folder or
// per-file errors.
type Result struct {
	Changes   core.ChangeSet
	Candidate *core.SyncCheckpoint
	Warnings  []error
}

// Source detects changes in an external document source by comparing its
// current listing against a checkpoint. Implementations must not mutate
// the given checkpoint.
type Source interface {
	// CheckForChanges lists the source and diffs it against cp.
	// An empty or nil checkpoint yields every item as added.
	CheckForChanges(ctx context.Context, cp *core.SyncCheckpoint) (*Result, error)
}

// ContentFetcher retrieves the raw bytes of a source item. Both source
// variants implement it; the ingestion processor depends only on this.
type ContentFetcher interface {
	Fetch(ctx context.Context, item core.SourceItem) ([]byte, error)
}
