// Package ingestion turns source documents into stored, embedded chunks.
//
// The Processor runs the per-document pipeline: fetch raw content through
// a watcher.ContentFetcher, convert it to text (HTML becomes markdown),
// split it with a recursive character splitter, embed the pieces in one
// batch with retry, replace the document's chunk set atomically, and
// enqueue an insights task. Unsupported formats fail the single item, not
// the cycle.
package ingestion
