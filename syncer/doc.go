// Package syncer coordinates sync cycles between a document source and
// the chunk store.
//
// The Orchestrator owns the cycle: load the checkpoint through the
// StateStore, ask the watcher for changes, hand each change to the
// ingestion processor, and persist the advanced checkpoint. Failures are
// isolated per item; the checkpoint never advances past a document whose
// processing failed.
//
// The StateStore layers a renameio-written file fallback under the badger
// checkpoint store so checkpoint persistence survives a broken database.
package syncer
