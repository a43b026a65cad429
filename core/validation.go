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


package core

import "fmt"

// ValidateSourceItem validates a SourceItem according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Fingerprint.SourceID must match the item ID
//
// NOT validated:
//   - MimeType (the processor decides whether a type is supported)
//   - Fingerprint.Revision (remote drives may omit revisions for folders)
func ValidateSourceItem(item *SourceItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidSourceItem)
	}

	if item.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSourceItem, ErrEmptySourceID)
	}

	if item.Fingerprint.SourceID != "" && item.Fingerprint.SourceID != item.ID {
		return fmt.Errorf("%w: fingerprint source %q does not match item %q",
			ErrInvalidSourceItem, item.Fingerprint.SourceID, item.ID)
	}

	return nil
}

// ValidateChunk validates a StoredChunk according to domain rules.
//
// Validation rules:
//   - SourceID must not be empty
//   - Index must not be negative
//   - Content must not be empty
//
// NOT validated (populated by processors):
//   - Vector (can be empty until embedding runs)
func ValidateChunk(chunk *StoredChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptySourceID)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative chunk index %d", ErrInvalidChunk, chunk.Index)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	return nil
}

// ValidateTaskStatus validates that a TaskStatus has a valid value.
func ValidateTaskStatus(status TaskStatus) error {
	switch status {
	case TaskPending, TaskProcessing, TaskCompleted, TaskFailed:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidStatus, int(status))
	}
}

// ValidateTaskTransition enforces the queue task state machine.
// A completed task never returns to pending or processing; a failed task
// may only be re-armed to pending (reset-failed, retry backoff).
func ValidateTaskTransition(from, to TaskStatus) error {
	if err := ValidateTaskStatus(from); err != nil {
		return err
	}
	if err := ValidateTaskStatus(to); err != nil {
		return err
	}

	allowed := map[TaskStatus][]TaskStatus{
		TaskPending:    {TaskProcessing},
		TaskProcessing: {TaskCompleted, TaskFailed, TaskPending},
		TaskFailed:     {TaskPending},
		TaskCompleted:  {},
	}

	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ValidateInsight validates an Insight according to domain rules.
//
// Validation rules:
//   - Title must not be empty
//   - SourceDocumentID must not be empty
//   - Confidence must lie in [0, 1]
//
// NOT validated:
//   - Type and Priority (unknown values are normalized by the generator)
//   - ProjectID (nullable)
func ValidateInsight(insight *Insight) error {
	if insight == nil {
		return fmt.Errorf("%w: insight is nil", ErrInvalidInsight)
	}

	if insight.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInsight, ErrEmptyTitle)
	}

	if insight.SourceDocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInsight, ErrEmptySourceID)
	}

	if insight.Confidence < 0 || insight.Confidence > 1 {
		return fmt.Errorf("%w: %w", ErrInvalidInsight, ErrInvalidConfidence)
	}

	return nil
}
