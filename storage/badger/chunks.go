package badger

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *ChunkRepository) Close() error {
	return nil
}

// ReplaceChunks deletes all existing chunks for sourceID and inserts the
// new set in one transaction. Chunks are stored with contiguous 0-based
// indices regardless of the indices on the input.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, sourceID string, chunks []*core.StoredChunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteChunksTx(tx, sourceID); err != nil {
			return err
		}

		for i, chunk := range chunks {
			chunk.SourceID = sourceID
			chunk.Index = i
			key := makeChunkKey(sourceID, i)
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteChunks removes all chunks for sourceID and reports how many were
// removed.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, sourceID string) (int, error) {
	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		keys, err := chunkKeysTx(tx, sourceID)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// GetChunks retrieves the chunks for sourceID ordered by index.
func (r *ChunkRepository) GetChunks(ctx context.Context, sourceID string) ([]*core.StoredChunk, error) {
	var chunks []*core.StoredChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkSourcePrefix(sourceID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.StoredChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Keys iterate in index order already; sort defensively in case of
	// mixed-width index encodings from older data.
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// ListSources returns the IDs of all documents with stored chunks.
func (r *ChunkRepository) ListSources(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var sources []string

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			sourceID, ok := chunkSourceFromKey(iter.Item().Key())
			if !ok {
				continue
			}
			if _, dup := seen[sourceID]; dup {
				continue
			}
			seen[sourceID] = struct{}{}
			sources = append(sources, sourceID)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.Strings(sources)
	return sources, nil
}

// deleteChunksTx removes a source's chunk keys inside an open transaction.
func deleteChunksTx(tx *badger.Txn, sourceID string) error {
	keys, err := chunkKeysTx(tx, sourceID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// chunkKeysTx collects a source's chunk keys. Keys are copied out because
// iterator keys are only valid during iteration.
func chunkKeysTx(tx *badger.Txn, sourceID string) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeChunkSourcePrefix(sourceID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	return keys, nil
}
