package tablesdk

import (
	"context"

	"github.com/acksell/nadella/aztables/table"
)

// MaxTransactionRows is the store's hard limit on rows per
// transactional submit.
const MaxTransactionRows = 100

// ActionKind is the per-row transaction action the store executes.
type ActionKind int

const (
	// AddRow inserts a new row; rejected with CodeConflict if the row
	// already exists.
	AddRow ActionKind = iota
	// UpdateMergeRow merges properties into an existing row; rejected
	// with CodeNotFound if the row does not exist.
	UpdateMergeRow
	// UpsertMergeRow merges properties, creating the row if needed.
	UpsertMergeRow
	// DeleteRow physically removes the row.
	DeleteRow
)

func (k ActionKind) String() string {
	switch k {
	case AddRow:
		return "Add"
	case UpdateMergeRow:
		return "UpdateMerge"
	case UpsertMergeRow:
		return "UpsertMerge"
	case DeleteRow:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Action pairs a row with the transaction action to apply to it.
type Action struct {
	Kind ActionKind
	Row  *table.Row
}

// QueryRequest describes a predicate query against one table.
type QueryRequest struct {
	Table string
	// Filter is a predicate string in the store's filter dialect.
	// Empty means match everything.
	Filter string
	// Select limits the returned property columns. Reserved columns
	// (keys, timestamp, etag) are always populated.
	Select []string
	// Top caps the number of returned rows. Zero means no cap.
	Top int
}

// TableClient is the row-store surface the mapping core consumes.
// Implementations must reject transactional submits that exceed
// MaxTransactionRows or span multiple partition keys.
type TableClient interface {
	// SubmitTransaction applies all actions atomically. Rows must
	// share one partition key. Rejections carry a *TransactionError.
	SubmitTransaction(ctx context.Context, tableName string, actions []Action) error

	// Submit applies a single action outside any batch.
	Submit(ctx context.Context, tableName string, action Action) error

	// Query evaluates a predicate and returns matching rows.
	Query(ctx context.Context, req QueryRequest) ([]*table.Row, error)
}

// TableAdmin is the table lifecycle surface. The mapping core never
// calls it; it exists for surrounding provisioning code.
type TableAdmin interface {
	CreateTableIfNotExists(ctx context.Context, def table.Definition) error
	DeleteTable(ctx context.Context, name string) error
	TableExists(ctx context.Context, name string) (bool, error)
}
