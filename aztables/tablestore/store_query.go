package tablestore

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/acksell/nadella/aztables/table"
	"github.com/acksell/nadella/aztables/tablesdk"
	"github.com/acksell/nadella/aztables/tablestore/filterexpr"
)

// Query evaluates a predicate over every row of a table, in partition
// key then row key order, applying the optional column projection and
// result cap.
func (s *Store) Query(ctx context.Context, req tablesdk.QueryRequest) ([]*table.Row, error) {
	if _, err := s.getTable(req.Table); err != nil {
		return nil, err
	}
	expr, err := filterexpr.Parse(req.Filter)
	if err != nil {
		return nil, err
	}

	var out []*table.Row
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix(req.Table)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var row *table.Row
			err := it.Item().Value(func(val []byte) error {
				r, err := decodeRow(val)
				row = r
				return err
			})
			if err != nil {
				return err
			}
			if !expr.Eval(row) {
				continue
			}
			out = append(out, project(row, req.Select))
			if req.Top > 0 && len(out) >= req.Top {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// project narrows a row's property bag to the selected columns.
// Reserved attributes (keys, timestamp, etag) always survive.
func project(row *table.Row, columns []string) *table.Row {
	if len(columns) == 0 {
		return row
	}
	narrowed := row.Clone()
	narrowed.Properties = make(map[string]table.Property, len(columns))
	for _, col := range columns {
		if p := row.Get(col); p != nil {
			narrowed.Properties[col] = p
		}
	}
	return narrowed
}
