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
	"os"
	"time"

	"github.com/google/renameio"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

// StateStore persists the sync checkpoint. The badger-backed store is the
// primary; when it fails, both Load and Save fall back to a MUS-encoded
// file written atomically with renameio, so a broken database degrades the
// pipeline instead of stopping it. The file round-trips the identical
// schema as the primary.
type StateStore struct {
	primary      storage.CheckpointStore
	fallbackPath string
	logger       *slog.Logger
}

// NewStateStore creates a state store over the given primary backend.
// fallbackPath may be empty to disable the file fallback.
func NewStateStore(primary storage.CheckpointStore, fallbackPath string) (*StateStore, error) {
	if primary == nil {
		return nil, ErrCheckpointStoreRequired
	}
	return &StateStore{
		primary:      primary,
		fallbackPath: fallbackPath,
		logger:       slog.Default().With("component", "state-store"),
	}, nil
}

// Load retrieves the current checkpoint. A first run, where no checkpoint
// exists anywhere, yields an empty checkpoint and no error.
func (s *StateStore) Load(ctx context.Context) (*core.SyncCheckpoint, error) {
	cp, err := s.primary.LoadCheckpoint(ctx)
	if err == nil {
		// A fallback file can exist if an earlier run saved in degraded
		// mode; when it is newer than the durable record it holds the
		// later cycle's state.
		fileCp, fileErr := s.loadFile()
		if cp == nil {
			if fileErr == nil && fileCp != nil {
				s.logger.Warn("using fallback checkpoint file; durable store has no checkpoint")
				return fileCp, nil
			}
			return core.NewSyncCheckpoint(), nil
		}
		if fileErr == nil && fileCp != nil && fileCp.UpdatedAt.After(cp.UpdatedAt) {
			s.logger.Warn("fallback checkpoint file is newer than durable store, using it",
				"durable", cp.UpdatedAt, "fallback", fileCp.UpdatedAt)
			return fileCp, nil
		}
		return cp, nil
	}

	s.logger.Warn("durable checkpoint load failed, trying fallback file", "err", err)
	fileCp, fileErr := s.loadFile()
	if fileErr != nil {
		return nil, fmt.Errorf("%w: durable: %v, fallback: %v", ErrCheckpointUnavailable, err, fileErr)
	}
	if fileCp == nil {
		return core.NewSyncCheckpoint(), nil
	}
	return fileCp, nil
}

// Save persists the checkpoint. A failed durable save after a successful
// fallback write is logged but not an error.
func (s *StateStore) Save(ctx context.Context, cp *core.SyncCheckpoint) error {
	err := s.primary.SaveCheckpoint(ctx, cp)
	if err == nil {
		return nil
	}

	s.logger.Warn("durable checkpoint save failed, writing fallback file", "err", err)
	// The primary stamps UpdatedAt itself; the degraded path stamps a
	// clone so Load can tell which record is newer without mutating the
	// caller's checkpoint.
	stamped := cp.Clone()
	stamped.UpdatedAt = time.Now().UTC()
	if fileErr := s.saveFile(stamped); fileErr != nil {
		return fmt.Errorf("%w: durable: %v, fallback: %v", ErrCheckpointUnavailable, err, fileErr)
	}
	return nil
}

// Close closes the primary backend.
func (s *StateStore) Close() error {
	return s.primary.Close()
}

func (s *StateStore) loadFile() (*core.SyncCheckpoint, error) {
	if s.fallbackPath == "" {
		return nil, fmt.Errorf("no fallback path configured")
	}
	data, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return storage.UnmarshalCheckpoint(data)
}

func (s *StateStore) saveFile(cp *core.SyncCheckpoint) error {
	if s.fallbackPath == "" {
		return fmt.Errorf("no fallback path configured")
	}
	// renameio writes to a temp file and renames, so a crash mid-save
	// leaves the previous file intact.
	return renameio.WriteFile(s.fallbackPath, storage.MarshalCheckpoint(cp), 0644)
}
