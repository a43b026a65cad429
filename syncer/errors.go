package syncer

import "errors"

var (
	// ErrSourceRequired is returned when a source watcher is not provided.
	ErrSourceRequired = errors.New("source watcher required")

	// ErrProcessorRequired is returned when a document processor is not provided.
	ErrProcessorRequired = errors.New("document processor required")

	// ErrStateStoreRequired is returned when a state store is not provided.
	ErrStateStoreRequired = errors.New("state store required")

	// ErrCheckpointStoreRequired is returned when a checkpoint backend is not provided.
	ErrCheckpointStoreRequired = errors.New("checkpoint store required")

	// ErrCycleFailed indicates a cycle in which every attempted change
	// failed. Distinguishes "nothing worked" from partial failure.
	ErrCycleFailed = errors.New("sync cycle failed")

	// ErrCheckpointUnavailable indicates that neither the durable backend
	// nor the file fallback could serve the checkpoint.
	ErrCheckpointUnavailable = errors.New("checkpoint unavailable")
)
