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


package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

// maxCommitRetries bounds retries of transactions that lost an SSI
// conflict race.
const maxCommitRetries = 10

// QueueRepository implements storage.QueueRepository for BadgerDB.
//
// Claims rely on Badger's serializable snapshot isolation: ClaimNext
// reads the pending index and rewrites the task inside one transaction,
// so of two concurrent claimants exactly one commits and the other gets
// ErrConflict, re-reads, and finds the task already processing.
type QueueRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.QueueRepository = (*QueueRepository)(nil)

// NewQueueRepository creates a new QueueRepository.
func NewQueueRepository(backend *Backend) (*QueueRepository, error) {
	idSeq, err := backend.GetSequence(taskIDSeq)
	if err != nil {
		return nil, err
	}

	return &QueueRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *QueueRepository) Close() error {
	return r.idSeq.Release()
}

// withWriteRetry runs fn in a write transaction, retrying commit
// conflicts a bounded number of times.
func (r *QueueRepository) withWriteRetry(fn func(tx *badger.Txn) error) error {
	var err error
	for i := 0; i < maxCommitRetries; i++ {
		err = r.backend.WithTx(fn, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
}

// Enqueue creates a pending task for documentID, or re-arms a failed one.
// An existing non-failed task makes this a no-op.
func (r *QueueRepository) Enqueue(ctx context.Context, documentID string) (*core.QueueTask, bool, error) {
	var task *core.QueueTask
	var created bool

	err := r.withWriteRetry(func(tx *badger.Txn) error {
		task = nil
		created = false

		existing, err := r.taskByDocumentTx(tx, documentID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()

		if existing != nil {
			if existing.Status != core.TaskFailed {
				task = existing
				return nil
			}
			// Re-arm the failed task.
			updated := *existing
			updated.Status = core.TaskPending
			updated.Attempts = 0
			updated.LastError = ""
			updated.NotBefore = time.Time{}
			updated.UpdatedAt = now
			if err := r.writeTaskTx(tx, existing, &updated); err != nil {
				return err
			}
			task = &updated
			created = true
			return tx.Commit()
		}

		id, err := r.nextID()
		if err != nil {
			return err
		}
		fresh := &core.QueueTask{
			Id:         id,
			DocumentID: documentID,
			Status:     core.TaskPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.writeTaskTx(tx, nil, fresh); err != nil {
			return err
		}
		if err := tx.Set(makeTaskDocKey(documentID), marshalID(fresh.Id)); err != nil {
			return err
		}
		task = fresh
		created = true
		return tx.Commit()
	})
	if err != nil {
		return nil, false, err
	}
	return task, created, nil
}

// ClaimNext atomically claims the oldest eligible pending task.
func (r *QueueRepository) ClaimNext(ctx context.Context) (*core.QueueTask, error) {
	var claimed *core.QueueTask

	err := r.withWriteRetry(func(tx *badger.Txn) error {
		claimed = nil
		now := time.Now().UTC()

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTaskStatusPrefix(core.TaskPending)
		iter := tx.NewIterator(opts)

		var candidate *core.QueueTask
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				id = unmarshalID(val)
				return nil
			})
			if err != nil {
				iter.Close()
				return err
			}

			task, err := r.taskByIDTx(tx, id)
			if err != nil {
				iter.Close()
				return err
			}
			if !task.NotBefore.IsZero() && task.NotBefore.After(now) {
				continue // backoff window still open
			}
			candidate = task
			break
		}
		iter.Close()

		if candidate == nil {
			return storage.ErrNoTask
		}

		updated := *candidate
		updated.Status = core.TaskProcessing
		updated.UpdatedAt = now
		if err := r.writeTaskTx(tx, candidate, &updated); err != nil {
			return err
		}
		claimed = &updated
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks a processing task as completed.
func (r *QueueRepository) Complete(ctx context.Context, id core.ID) error {
	return r.transition(id, func(task *core.QueueTask, updated *core.QueueTask) error {
		if err := core.ValidateTaskTransition(task.Status, core.TaskCompleted); err != nil {
			return err
		}
		updated.Status = core.TaskCompleted
		updated.LastError = ""
		updated.NotBefore = time.Time{}
		return nil
	})
}

// Fail records a failed attempt: back to pending with a retry window
// while attempts remain, otherwise permanently failed.
func (r *QueueRepository) Fail(ctx context.Context, id core.ID, taskErr string, retryAt time.Time, maxAttempts int) error {
	return r.transition(id, func(task *core.QueueTask, updated *core.QueueTask) error {
		if task.Status != core.TaskProcessing {
			return fmt.Errorf("%w: fail on %s task %d", core.ErrInvalidTransition, task.Status, task.Id)
		}
		updated.Attempts = task.Attempts + 1
		updated.LastError = taskErr
		if updated.Attempts < maxAttempts {
			updated.Status = core.TaskPending
			updated.NotBefore = retryAt
		} else {
			updated.Status = core.TaskFailed
			updated.NotBefore = time.Time{}
		}
		return nil
	})
}

// transition applies fn to one task inside a conflict-retried write
// transaction.
func (r *QueueRepository) transition(id core.ID, fn func(task, updated *core.QueueTask) error) error {
	return r.withWriteRetry(func(tx *badger.Txn) error {
		task, err := r.taskByIDTx(tx, id)
		if err != nil {
			return err
		}

		updated := *task
		updated.UpdatedAt = time.Now().UTC()
		if err := fn(task, &updated); err != nil {
			return err
		}
		if err := r.writeTaskTx(tx, task, &updated); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ResetFailed re-arms every failed task to pending with attempts reset.
func (r *QueueRepository) ResetFailed(ctx context.Context) (int, error) {
	reset := 0
	err := r.withWriteRetry(func(tx *badger.Txn) error {
		reset = 0
		ids, err := r.taskIDsByStatusTx(tx, core.TaskFailed)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, id := range ids {
			task, err := r.taskByIDTx(tx, id)
			if err != nil {
				return err
			}
			updated := *task
			updated.Status = core.TaskPending
			updated.Attempts = 0
			updated.LastError = ""
			updated.NotBefore = time.Time{}
			updated.UpdatedAt = now
			if err := r.writeTaskTx(tx, task, &updated); err != nil {
				return err
			}
			reset++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

// ReclaimStale returns tasks stuck in processing longer than olderThan to
// pending so they can be claimed again.
func (r *QueueRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	reclaimed := 0
	err := r.withWriteRetry(func(tx *badger.Txn) error {
		reclaimed = 0
		ids, err := r.taskIDsByStatusTx(tx, core.TaskProcessing)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		cutoff := now.Add(-olderThan)
		for _, id := range ids {
			task, err := r.taskByIDTx(tx, id)
			if err != nil {
				return err
			}
			if task.UpdatedAt.After(cutoff) {
				continue
			}
			updated := *task
			updated.Status = core.TaskPending
			updated.UpdatedAt = now
			if err := r.writeTaskTx(tx, task, &updated); err != nil {
				return err
			}
			reclaimed++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return reclaimed, nil
}

// GetTask retrieves a task by ID.
func (r *QueueRepository) GetTask(ctx context.Context, id core.ID) (*core.QueueTask, error) {
	var task *core.QueueTask
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		task, err = r.taskByIDTx(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTaskByDocument retrieves the task for a document.
func (r *QueueRepository) GetTaskByDocument(ctx context.Context, documentID string) (*core.QueueTask, error) {
	var task *core.QueueTask
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		task, err = r.taskByDocumentTx(tx, documentID)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Stats returns queue counts and the oldest pending task's age.
func (r *QueueRepository) Stats(ctx context.Context) (*core.QueueStats, error) {
	stats := &core.QueueStats{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		counts := map[core.TaskStatus]*int{
			core.TaskPending:    &stats.Pending,
			core.TaskProcessing: &stats.Processing,
			core.TaskCompleted:  &stats.Completed,
			core.TaskFailed:     &stats.Failed,
		}
		for status, target := range counts {
			ids, err := r.taskIDsByStatusTx(tx, status)
			if err != nil {
				return err
			}
			*target = len(ids)
		}

		// The pending index orders by creation time; the first key holds
		// the oldest task's timestamp.
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTaskStatusPrefix(core.TaskPending)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		iter.Rewind()
		if iter.Valid() {
			key := iter.Item().Key()
			prefixLen := len(opts.Prefix)
			if len(key) >= prefixLen+8 {
				micros := int64(binary.BigEndian.Uint64(key[prefixLen : prefixLen+8]))
				age := time.Since(time.UnixMicro(micros))
				if age > 0 {
					stats.OldestPendingAge = age
				}
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// nextID draws a non-zero task ID from the sequence.
func (r *QueueRepository) nextID() (core.ID, error) {
	next, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if next == 0 {
		next, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(next), nil
}

// taskByIDTx reads a task inside an open transaction.
func (r *QueueRepository) taskByIDTx(tx *badger.Txn, id core.ID) (*core.QueueTask, error) {
	item, err := tx.Get(makeTaskKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var task *core.QueueTask
	err = item.Value(func(val []byte) error {
		var err error
		task, err = storage.UnmarshalTask(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// taskByDocumentTx resolves the document index inside an open transaction.
func (r *QueueRepository) taskByDocumentTx(tx *badger.Txn, documentID string) (*core.QueueTask, error) {
	item, err := tx.Get(makeTaskDocKey(documentID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var id core.ID
	err = item.Value(func(val []byte) error {
		id = unmarshalID(val)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.taskByIDTx(tx, id)
}

// writeTaskTx stores a task and maintains its status index. old may be
// nil for a fresh task.
func (r *QueueRepository) writeTaskTx(tx *badger.Txn, old, task *core.QueueTask) error {
	if old != nil && old.Status != task.Status {
		if err := tx.Delete(makeTaskStatusKey(old.Status, old.CreatedAt, old.Id)); err != nil {
			return err
		}
	}
	if err := tx.Set(makeTaskKey(task.Id), storage.MarshalTask(task)); err != nil {
		return err
	}
	if old == nil || old.Status != task.Status {
		if err := tx.Set(makeTaskStatusKey(task.Status, task.CreatedAt, task.Id), marshalID(task.Id)); err != nil {
			return err
		}
	}
	return nil
}

// taskIDsByStatusTx lists task IDs for one status, oldest first.
func (r *QueueRepository) taskIDsByStatusTx(tx *badger.Txn, status core.TaskStatus) ([]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeTaskStatusPrefix(status)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id core.ID
		err := iter.Item().Value(func(val []byte) error {
			id = unmarshalID(val)
			return nil
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
