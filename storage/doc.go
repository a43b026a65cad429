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


// Package storage provides the storage abstraction layer for ragpipe.
//
// This package defines repository interfaces that decouple storage
// implementation from the sync and insights logic. It allows different
// backends (BadgerDB, in-memory, etc.) to be used interchangeably.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - CheckpointStore: durable SyncCheckpoint persistence (atomic swap)
//   - ChunkRepository: StoredChunk reconciliation (replace-not-merge)
//   - QueueRepository: QueueTask lifecycle with atomic claims
//   - InsightRepository: Insight record persistence
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. Mutations of shared state
// (checkpoint swap, task claim/complete/fail) are single atomic
// operations; no long-lived lock is ever held across an external API
// call.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and
// timeout support.
package storage
