// Package watcher implements polling change detection for document sources.
//
// A Source lists its current items, fingerprints them, and diffs the
// listing against the last persisted checkpoint. Two variants exist:
// LocalSource walks a directory tree and hashes file content, DriveSource
// lists a remote Drive-style folder tree and uses server-side revision ids.
// Both also implement ContentFetcher so the ingestion pipeline can retrieve
// item bytes without knowing the variant.
//
// Change detection is pull-only. There is no filesystem event or webhook
// integration; the orchestrator decides when to poll.
package watcher
