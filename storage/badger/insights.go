package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
)

// InsightRepository implements storage.InsightRepository for BadgerDB.
type InsightRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.InsightRepository = (*InsightRepository)(nil)

// NewInsightRepository creates a new InsightRepository.
func NewInsightRepository(backend *Backend) (*InsightRepository, error) {
	idSeq, err := backend.GetSequence(insightIDSeq)
	if err != nil {
		return nil, err
	}

	return &InsightRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *InsightRepository) Close() error {
	return r.idSeq.Release()
}

// AddInsights stores insights, assigning sequence IDs and timestamps.
func (r *InsightRepository) AddInsights(ctx context.Context, insights ...*core.Insight) ([]*core.Insight, error) {
	for _, insight := range insights {
		if err := core.ValidateInsight(insight); err != nil {
			return nil, err
		}
	}

	stored := make([]*core.Insight, 0, len(insights))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, insight := range insights {
			record := *insight
			if record.Id == 0 {
				id, err := r.nextID()
				if err != nil {
					return err
				}
				record.Id = id
			}
			if record.CreatedAt.IsZero() {
				record.CreatedAt = now
			}

			if err := tx.Set(makeInsightKey(record.Id), storage.MarshalInsight(&record)); err != nil {
				return err
			}
			if err := tx.Set(makeInsightDateKey(record.CreatedAt, record.Id), marshalID(record.Id)); err != nil {
				return err
			}
			if record.SourceDocumentID != "" {
				if err := tx.Set(makeInsightDocKey(record.SourceDocumentID, record.Id), marshalID(record.Id)); err != nil {
					return err
				}
			}
			stored = append(stored, &record)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetRecentInsights returns up to limit insights, newest first.
func (r *InsightRepository) GetRecentInsights(ctx context.Context, limit int) ([]*core.Insight, error) {
	if limit <= 0 {
		return nil, nil
	}

	var insights []*core.Insight
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(insightDatePrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration seeks to the last key under the prefix.
		seek := append(append([]byte{}, prefix...), 0xff)
		for iter.Seek(seek); iter.Valid() && len(insights) < limit; iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				id = unmarshalID(val)
				return nil
			})
			if err != nil {
				return err
			}

			insight, err := r.insightByIDTx(tx, id)
			if err != nil {
				return err
			}
			insights = append(insights, insight)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return insights, nil
}

// GetInsightsByDocument returns all insights produced from a document.
func (r *InsightRepository) GetInsightsByDocument(ctx context.Context, documentID string) ([]*core.Insight, error) {
	var insights []*core.Insight
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeInsightDocPrefix(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				id = unmarshalID(val)
				return nil
			})
			if err != nil {
				return err
			}

			insight, err := r.insightByIDTx(tx, id)
			if err != nil {
				return err
			}
			insights = append(insights, insight)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return insights, nil
}

// nextID draws a non-zero insight ID from the sequence.
func (r *InsightRepository) nextID() (core.ID, error) {
	next, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if next == 0 {
		next, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(next), nil
}

// insightByIDTx reads an insight inside an open transaction.
func (r *InsightRepository) insightByIDTx(tx *badger.Txn, id core.ID) (*core.Insight, error) {
	item, err := tx.Get(makeInsightKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var insight *core.Insight
	err = item.Value(func(val []byte) error {
		var err error
		insight, err = storage.UnmarshalInsight(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return insight, nil
}
