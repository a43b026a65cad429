// Package insights turns ingested documents into structured insight
// records.
//
// The Queue service wraps the durable task queue with the retry policy:
// attempts, exponential backoff persisted on the task, reset and
// retroactive enqueue operations. The Worker polls the queue, dispatches
// claimed tasks to a bounded ants pool, and runs the insight generator
// over each document's chunk text. The API exposes the operational HTTP
// surface (health, stats, retroactive, reset-failed, recent insights).
//
// The sync side of the pipeline only ever enqueues; everything that
// touches insight records lives here.
package insights
