package ingestion

import "errors"

var (
	// ErrUnsupportedFormat is returned when a document's mime type has no
	// converter. It is a recoverable per-item error; other items in the
	// same cycle still process.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrFetcherRequired is returned when a content fetcher is not provided.
	ErrFetcherRequired = errors.New("content fetcher required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrQueueRequired is returned when a queue repository is not provided.
	ErrQueueRequired = errors.New("queue repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned when a retry attempt count is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")
)
