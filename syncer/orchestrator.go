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


package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/watcher"
)

// Processor is the per-document half of a sync cycle. Satisfied by
// ingestion.Processor.
type Processor interface {
	// Process ingests one added or modified document.
	Process(ctx context.Context, item core.SourceItem) (int, error)

	// Remove deletes the stored chunks of a removed document.
	Remove(ctx context.Context, sourceID string) error
}

// Orchestrator drives sync cycles: load checkpoint, detect changes,
// process each change with item-level error isolation, persist the
// advanced checkpoint.
type Orchestrator struct {
	source    watcher.Source
	processor Processor
	state     *StateStore
	logger    *slog.Logger
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(source watcher.Source, processor Processor, state *StateStore) (*Orchestrator, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if processor == nil {
		return nil, ErrProcessorRequired
	}
	if state == nil {
		return nil, ErrStateStoreRequired
	}
	return &Orchestrator{
		source:    source,
		processor: processor,
		state:     state,
		logger:    slog.Default().With("component", "orchestrator"),
	}, nil
}

// RunOnce executes a single sync cycle. Per-item failures are isolated:
// the failed item is pruned from the candidate checkpoint so the next
// cycle retries it, while all other changes complete and the checkpoint
// advances. A watcher-level error aborts before any processing with the
// checkpoint untouched. A cycle where every attempted change failed
// returns ErrCycleFailed alongside the stats.
func (o *Orchestrator) RunOnce(ctx context.Context) (core.CycleStats, error) {
	start := time.Now()
	var stats core.CycleStats

	cp, err := o.state.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load checkpoint: %w", err)
	}

	result, err := o.source.CheckForChanges(ctx, cp)
	if err != nil {
		return stats, fmt.Errorf("check for changes: %w", err)
	}
	for _, warn := range result.Warnings {
		o.logger.Warn("source warning", "err", warn)
	}

	candidate := result.Candidate

	for _, item := range append(result.Changes.Added, result.Changes.Modified...) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.finish(stats, start), ctxErr
		}
		if _, err := o.processor.Process(ctx, item); err != nil {
			o.logger.Error("document processing failed", "item", item.ID, "err", err)
			stats.Errors++
			// The checkpoint must not claim this item; next cycle diffs
			// it as added/modified again.
			delete(candidate.KnownItems, item.ID)
			continue
		}
		stats.Processed++
	}

	for _, id := range result.Changes.Removed {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.finish(stats, start), ctxErr
		}
		if err := o.processor.Remove(ctx, id); err != nil {
			o.logger.Error("document removal failed", "item", id, "err", err)
			stats.Errors++
			// Keep the stale fingerprint so the removal is retried.
			if prev, ok := cp.KnownItems[id]; ok {
				candidate.KnownItems[id] = prev
			}
			continue
		}
		stats.Deleted++
	}

	if err := o.state.Save(ctx, candidate); err != nil {
		return o.finish(stats, start), fmt.Errorf("save checkpoint: %w", err)
	}

	stats = o.finish(stats, start)
	o.logger.Info("sync cycle complete",
		"processed", stats.Processed,
		"deleted", stats.Deleted,
		"errors", stats.Errors,
		"duration", stats.Duration)

	if stats.Errors > 0 && stats.Processed == 0 && stats.Deleted == 0 {
		return stats, ErrCycleFailed
	}
	return stats, nil
}

// RunForever runs cycles at the given interval until the context is
// canceled. The in-flight cycle finishes; no new cycle starts after
// cancellation. Cycle errors are logged and the loop continues.
func (o *Orchestrator) RunForever(ctx context.Context, interval time.Duration) error {
	o.logger.Info("continuous sync started", "interval", interval)

	for {
		if _, err := o.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("sync cycle failed", "err", err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			o.logger.Info("continuous sync stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) finish(stats core.CycleStats, start time.Time) core.CycleStats {
	stats.Duration = time.Since(start)
	return stats
}
