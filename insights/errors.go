package insights

import "errors"

var (
	// ErrQueueRepositoryRequired is returned when a queue repository is not provided.
	ErrQueueRepositoryRequired = errors.New("queue repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrInsightRepositoryRequired is returned when an insight repository is not provided.
	ErrInsightRepositoryRequired = errors.New("insight repository required")

	// ErrGeneratorRequired is returned when an insight generator is not provided.
	ErrGeneratorRequired = errors.New("insight generator required")

	// ErrQueueServiceRequired is returned when a queue service is not provided.
	ErrQueueServiceRequired = errors.New("queue service required")

	// ErrInvalidConcurrency is returned when a worker pool size is not positive.
	ErrInvalidConcurrency = errors.New("concurrency must be greater than zero")
)
