package tablesdk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acksell/nadella/aztables/table"
)

// MockStore is a scriptable in-memory TableClient for tests. The
// default behavior implements the store's transactional semantics
// (conflicts on existing adds, not-found on missing merge targets);
// the hooks let tests observe calls or inject failures.
//
// For an implementation with real durability and predicate
// evaluation, use the tablestore package instead.
type MockStore struct {
	// SubmitTransactionHook, when set, runs instead of the default
	// transaction logic.
	SubmitTransactionHook func(tableName string, actions []Action) error

	// QueryHook, when set, runs instead of the default query logic
	// (which ignores filters and returns everything in the table).
	QueryHook func(req QueryRequest) ([]*table.Row, error)

	// Transactions records every SubmitTransaction call.
	Transactions [][]Action

	tables map[string]map[string]map[string]*table.Row // table -> pk -> rk
}

var _ TableClient = &MockStore{}

func NewMockStore() *MockStore {
	return &MockStore{
		tables: make(map[string]map[string]map[string]*table.Row),
	}
}

func (m *MockStore) SubmitTransaction(ctx context.Context, tableName string, actions []Action) error {
	m.Transactions = append(m.Transactions, actions)
	if m.SubmitTransactionHook != nil {
		return m.SubmitTransactionHook(tableName, actions)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(actions) > MaxTransactionRows {
		return &TransactionError{Code: CodeInvalidInput, FailedIndex: -1, Err: fmt.Errorf("%d actions exceeds limit", len(actions))}
	}
	for i, a := range actions {
		if a.Row.PartitionKey() != actions[0].Row.PartitionKey() {
			return &TransactionError{Code: CodeInvalidInput, FailedIndex: i, Err: fmt.Errorf("mixed partition keys")}
		}
	}
	// Validate before applying so the batch stays atomic.
	for i, a := range actions {
		if err := m.check(tableName, a); err != nil {
			return &TransactionError{Code: errCode(a, tableName, m), FailedIndex: i, Err: err}
		}
	}
	for _, a := range actions {
		m.apply(tableName, a)
	}
	return nil
}

func (m *MockStore) Submit(ctx context.Context, tableName string, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.check(tableName, action); err != nil {
		return &TransactionError{Code: errCode(action, tableName, m), FailedIndex: 0, Err: err}
	}
	m.apply(tableName, action)
	return nil
}

func (m *MockStore) Query(ctx context.Context, req QueryRequest) ([]*table.Row, error) {
	if m.QueryHook != nil {
		return m.QueryHook(req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*table.Row
	for _, partition := range m.tables[req.Table] {
		for _, r := range partition {
			if req.Top > 0 && len(out) >= req.Top {
				return out, nil
			}
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Rows returns all stored rows for a table, for assertions.
func (m *MockStore) Rows(tableName string) []*table.Row {
	var out []*table.Row
	for _, partition := range m.tables[tableName] {
		for _, r := range partition {
			out = append(out, r)
		}
	}
	return out
}

// Row returns a stored row or nil.
func (m *MockStore) Row(tableName, pk, rk string) *table.Row {
	return m.tables[tableName][pk][rk]
}

func (m *MockStore) lookup(tableName, pk, rk string) *table.Row {
	return m.tables[tableName][pk][rk]
}

func (m *MockStore) check(tableName string, a Action) error {
	existing := m.lookup(tableName, a.Row.PartitionKey(), a.Row.RowKey())
	switch a.Kind {
	case AddRow:
		if existing != nil {
			return fmt.Errorf("row already exists")
		}
	case UpdateMergeRow, DeleteRow:
		if existing == nil {
			return fmt.Errorf("row not found")
		}
		if a.Row.ETag != "" && a.Row.ETag != table.ETagAny && a.Row.ETag != existing.ETag {
			return fmt.Errorf("concurrency token mismatch")
		}
	}
	return nil
}

func errCode(a Action, tableName string, m *MockStore) string {
	existing := m.lookup(tableName, a.Row.PartitionKey(), a.Row.RowKey())
	if existing == nil && a.Kind != AddRow {
		return CodeNotFound
	}
	return CodeConflict
}

func (m *MockStore) apply(tableName string, a Action) {
	pk, rk := a.Row.PartitionKey(), a.Row.RowKey()
	if m.tables[tableName] == nil {
		m.tables[tableName] = make(map[string]map[string]*table.Row)
	}
	if m.tables[tableName][pk] == nil {
		m.tables[tableName][pk] = make(map[string]*table.Row)
	}

	switch a.Kind {
	case DeleteRow:
		delete(m.tables[tableName][pk], rk)
		return
	case AddRow, UpsertMergeRow, UpdateMergeRow:
		stored := m.lookup(tableName, pk, rk)
		if stored == nil {
			stored = a.Row.Clone()
			stored.Properties = make(map[string]table.Property)
		}
		for k, v := range a.Row.Properties {
			stored.Properties[k] = v
		}
		stored.Timestamp = time.Now().UTC()
		stored.ETag = uuid.NewString()
		m.tables[tableName][pk][rk] = stored
	}
}
