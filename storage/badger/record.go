package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) (*RecordRepository, error) {
	idSeq, err := backend.GetSequence(receiptIDSeq)
	if err != nil {
		return nil, err
	}

	return &RecordRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *RecordRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *RecordRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddRecord adds a record to its owner's collection. Failures other than
// cancellation surface as ErrWriteFailed so callers can apply their bounded
// retry policy; retrying with the ID already assigned overwrites the same
// key and is idempotent.
func (r *RecordRepository) AddRecord(ctx context.Context, record *core.Record) (*core.Record, error) {
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		if record.Id == 0 {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			record.Id = core.ID(nextID)
		}

		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
		record.UpdatedAt = time.Now().UTC()

		key := makeReceiptKey(record.OwnerId, record.Id)
		return tx.Set(key, storage.MarshalRecord(record))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", storage.ErrWriteFailed, err)
	}
	return record, nil
}

// GetRecord retrieves a record from the tenant's collection.
func (r *RecordRepository) GetRecord(ctx context.Context, tenantID, id core.ID) (*core.Record, error) {
	var result *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeReceiptKey(tenantID, id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListRecords retrieves all of a tenant's records, newest first.
func (r *RecordRepository) ListRecords(ctx context.Context, tenantID core.ID) ([]*core.Record, error) {
	return r.listRecords(tenantID, nil)
}

// ListNeedsReview retrieves the tenant's records awaiting manual
// verification, newest first.
func (r *RecordRepository) ListNeedsReview(ctx context.Context, tenantID core.ID) ([]*core.Record, error) {
	return r.listRecords(tenantID, func(record *core.Record) bool {
		return record.Status == core.RecordNeedsReview
	})
}

// listRecords iterates a tenant's collection in reverse key order.
// Record IDs come from a monotonic sequence, so reverse ID order is
// newest-first.
func (r *RecordRepository) listRecords(tenantID core.ID, keep func(*core.Record) bool) ([]*core.Record, error) {
	var results []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		scanPrefix := makeReceiptScanPrefix(tenantID)

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = scanPrefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// For reverse iteration, seek past the last possible key in the
		// tenant's range
		seekKey := makeReceiptKey(tenantID, core.ID(^uint64(0)))

		for iter.Seek(seekKey); iter.ValidForPrefix(scanPrefix); iter.Next() {
			var record *core.Record
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if keep == nil || keep(record) {
				results = append(results, record)
			}
		}
		return nil
	}, false)
	return results, err
}

// UpdateRecord updates an existing record in its owner's collection.
func (r *RecordRepository) UpdateRecord(ctx context.Context, record *core.Record) (*core.Record, error) {
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeReceiptKey(record.OwnerId, record.Id)
		old, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		record.CreatedAt = old.CreatedAt
		record.UpdatedAt = time.Now().UTC()

		return tx.Set(key, storage.MarshalRecord(record))
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteRecord removes a record from the tenant's collection.
func (r *RecordRepository) DeleteRecord(ctx context.Context, tenantID, id core.ID) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeReceiptKey(tenantID, id)
		record, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}
		return tx.Delete(key)
	})
}

// DeleteRecords removes multiple records, skipping missing IDs.
func (r *RecordRepository) DeleteRecords(ctx context.Context, tenantID core.ID, ids ...core.ID) (int, error) {
	deleted := 0
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		deleted = 0
		for _, id := range ids {
			key := makeReceiptKey(tenantID, id)
			record, err := readRecord(tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// readRecord reads a record from the transaction.
// Returns (nil, nil) when the key is absent.
func readRecord(tx *badger.Txn, key []byte) (*core.Record, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.Record
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalRecord(val)
		return unmarshalErr
	})
	return record, err
}
