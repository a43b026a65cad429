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

import "github.com/dynamous/ragpipe/storage"

// Stores bundles every repository backed by one database handle.
type Stores struct {
	Backend     *Backend
	Checkpoints storage.CheckpointStore
	Chunks      storage.ChunkRepository
	Queue       storage.QueueRepository
	Insights    storage.InsightRepository
}

// Close closes the repositories and the backend.
func (s *Stores) Close() error {
	s.Insights.Close()
	s.Queue.Close()
	s.Chunks.Close()
	s.Checkpoints.Close()
	return s.Backend.Close()
}

// OpenStores opens the database at filePath and wires up all
// repositories over the shared backend.
func OpenStores(filePath string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	queue, err := NewQueueRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	insights, err := NewInsightRepository(backend)
	if err != nil {
		queue.Close()
		backend.Close()
		return nil, err
	}

	return &Stores{
		Backend:     backend,
		Checkpoints: NewCheckpointStore(backend),
		Chunks:      NewChunkRepository(backend),
		Queue:       queue,
		Insights:    insights,
	}, nil
}

// NewMemoryStores creates in-memory repositories for testing.
// Caller must close the returned stores when done.
func NewMemoryStores() (*Stores, error) {
	return OpenStores("", true)
}
