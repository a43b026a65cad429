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

import "errors"

// Domain validation errors
var (
	// ErrInvalidSourceItem indicates a SourceItem failed validation.
	ErrInvalidSourceItem = errors.New("invalid source item")

	// ErrInvalidChunk indicates a StoredChunk failed validation.
	ErrInvalidChunk = errors.New("invalid stored chunk")

	// ErrInvalidTask indicates a QueueTask failed validation.
	ErrInvalidTask = errors.New("invalid queue task")

	// ErrInvalidInsight indicates an Insight failed validation.
	ErrInvalidInsight = errors.New("invalid insight")

	// ErrEmptySourceID indicates a missing source item identifier.
	ErrEmptySourceID = errors.New("source id cannot be empty")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyTitle indicates the insight Title field is empty.
	ErrEmptyTitle = errors.New("insight title cannot be empty")

	// ErrInvalidStatus indicates an invalid TaskStatus value.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidConfidence indicates a confidence score outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence score must be between 0 and 1")

	// ErrInvalidTransition indicates a forbidden task status transition.
	ErrInvalidTransition = errors.New("invalid task status transition")
)
