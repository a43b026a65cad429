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
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

// CheckpointStore implements storage.CheckpointStore for BadgerDB.
// The checkpoint lives under a single key, so every save is an atomic
// wholesale swap.
type CheckpointStore struct {
	backend *Backend
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(backend *Backend) *CheckpointStore {
	return &CheckpointStore{
		backend: backend,
	}
}

// SaveCheckpoint persists the sync checkpoint.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, checkpoint *core.SyncCheckpoint) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		checkpoint.UpdatedAt = time.Now().UTC()
		value := storage.MarshalCheckpoint(checkpoint)
		if err := tx.Set([]byte(checkpointKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint retrieves the sync checkpoint.
// Returns nil, nil if no checkpoint exists.
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context) (*core.SyncCheckpoint, error) {
	var checkpoint *core.SyncCheckpoint
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(checkpointKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
			return unmarshalErr
		})
	}, false)

	return checkpoint, err
}

// Close is a no-op; the backend owns the database handle.
func (s *CheckpointStore) Close() error {
	return nil
}
