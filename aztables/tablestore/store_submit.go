package tablestore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/acksell/nadella/aztables/table"
	"github.com/acksell/nadella/aztables/tablesdk"
)

// SubmitTransaction applies all actions atomically. Rows must share
// one partition key (compared exactly as stored; the store is
// case-sensitive) and carry distinct row keys. Rejections report the
// first offending action through *tablesdk.TransactionError.
func (s *Store) SubmitTransaction(ctx context.Context, tableName string, actions []tablesdk.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.getTable(tableName); err != nil {
		return err
	}
	if len(actions) == 0 {
		return nil
	}
	if len(actions) > tablesdk.MaxTransactionRows {
		return &tablesdk.TransactionError{
			Code:        tablesdk.CodeInvalidInput,
			FailedIndex: -1,
			Err:         fmt.Errorf("%d actions exceeds the %d-row transaction limit", len(actions), tablesdk.MaxTransactionRows),
		}
	}

	pk := actions[0].Row.PartitionKey()
	seen := make(map[string]struct{}, len(actions))
	for i, a := range actions {
		if a.Row == nil {
			return &tablesdk.TransactionError{Code: tablesdk.CodeInvalidInput, FailedIndex: i, Err: fmt.Errorf("action without a row")}
		}
		if a.Row.PartitionKey() != pk {
			return &tablesdk.TransactionError{Code: tablesdk.CodeInvalidInput, FailedIndex: i, Err: fmt.Errorf("transaction spans partitions %q and %q", pk, a.Row.PartitionKey())}
		}
		if _, dup := seen[a.Row.RowKey()]; dup {
			return &tablesdk.TransactionError{Code: tablesdk.CodeInvalidInput, FailedIndex: i, Err: fmt.Errorf("duplicate row key %q", a.Row.RowKey())}
		}
		seen[a.Row.RowKey()] = struct{}{}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// First pass: validate every precondition so the batch stays
		// all-or-nothing.
		for i, a := range actions {
			existing, err := s.readRow(txn, tableName, a.Row.PartitionKey(), a.Row.RowKey())
			if err != nil {
				return err
			}
			if err := checkAction(a, existing, i); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		for _, a := range actions {
			if err := s.applyAction(txn, tableName, a, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Submit applies a single action outside any batch, with the same
// validation as a one-row transaction.
func (s *Store) Submit(ctx context.Context, tableName string, action tablesdk.Action) error {
	return s.SubmitTransaction(ctx, tableName, []tablesdk.Action{action})
}

func checkAction(a tablesdk.Action, existing *table.Row, index int) error {
	switch a.Kind {
	case tablesdk.AddRow:
		if existing != nil {
			return &tablesdk.TransactionError{
				Code:        tablesdk.CodeConflict,
				FailedIndex: index,
				Err:         fmt.Errorf("row %q already exists", a.Row.RowKey()),
			}
		}

	case tablesdk.UpdateMergeRow, tablesdk.DeleteRow:
		if existing == nil {
			return &tablesdk.TransactionError{
				Code:        tablesdk.CodeNotFound,
				FailedIndex: index,
				Err:         fmt.Errorf("row %q not found", a.Row.RowKey()),
			}
		}
		if err := checkETag(a.Row, existing, index); err != nil {
			return err
		}

	case tablesdk.UpsertMergeRow:
		// Upserts only honor a concurrency token when one is supplied
		// and a row exists to check it against.
		if existing != nil {
			if err := checkETag(a.Row, existing, index); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkETag(proposed, existing *table.Row, index int) error {
	if proposed.ETag == "" || proposed.ETag == table.ETagAny {
		return nil
	}
	if proposed.ETag != existing.ETag {
		return &tablesdk.TransactionError{
			Code:        tablesdk.CodeConflict,
			FailedIndex: index,
			Err:         fmt.Errorf("concurrency token mismatch on row %q", proposed.RowKey()),
		}
	}
	return nil
}

func (s *Store) readRow(txn *badger.Txn, tableName, pk, rk string) (*table.Row, error) {
	item, err := txn.Get(rowKey(tableName, pk, rk))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var row *table.Row
	err = item.Value(func(val []byte) error {
		r, err := decodeRow(val)
		row = r
		return err
	})
	return row, err
}

func (s *Store) applyAction(txn *badger.Txn, tableName string, a tablesdk.Action, now time.Time) error {
	key := rowKey(tableName, a.Row.PartitionKey(), a.Row.RowKey())

	if a.Kind == tablesdk.DeleteRow {
		if err := txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	}

	existing, err := s.readRow(txn, tableName, a.Row.PartitionKey(), a.Row.RowKey())
	if err != nil {
		return err
	}
	stored := existing
	if stored == nil {
		stored, err = table.NewRow(a.Row.PartitionKey(), a.Row.RowKey())
		if err != nil {
			return err
		}
	}
	for name, p := range a.Row.Properties {
		stored.Set(name, p)
	}
	// The store owns the timestamp and the concurrency token.
	stored.Timestamp = now
	stored.ETag = uuid.NewString()

	data, err := encodeRow(stored)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
