package tablesdk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/acksell/nadella/aztables/table"
)

// Intent is the caller's write intent for a collection of rows.
type Intent int

const (
	IntentInsert Intent = iota
	IntentUpdate
	IntentUpsert
	IntentDelete
)

func (i Intent) String() string {
	switch i {
	case IntentInsert:
		return "Insert"
	case IntentUpdate:
		return "Update"
	case IntentUpsert:
		return "Upsert"
	case IntentDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// BatchResult aggregates the outcome of a bulk write. Partial failure
// is a result shape here, never a raised error, so a bulk write of
// mixed-quality data can report exactly which rows succeeded.
type BatchResult struct {
	Passed   int
	Failed   int
	Messages []string
}

// actionKind maps a write intent to the per-row transaction action.
// Deletes on soft-delete tables become merge-updates unless a hard
// delete is requested.
func actionKind(intent Intent, softDelete, hardDelete bool) ActionKind {
	switch intent {
	case IntentInsert:
		return AddRow
	case IntentUpdate:
		return UpdateMergeRow
	case IntentUpsert:
		return UpsertMergeRow
	case IntentDelete:
		if softDelete && !hardDelete {
			return UpdateMergeRow
		}
		return DeleteRow
	default:
		return UpsertMergeRow
	}
}

type partitionGroup struct {
	// key is the grouping key: the partition key normalized to upper
	// case. The stored partition key is left untouched; normalization
	// only decides grouping.
	key  string
	rows []*table.Row
}

// groupByPartition buckets rows by case-normalized partition key,
// preserving first-seen group order and relative row order.
func groupByPartition(rows []*table.Row) []*partitionGroup {
	var groups []*partitionGroup
	index := make(map[string]*partitionGroup)
	for _, r := range rows {
		key := strings.ToUpper(r.PartitionKey())
		g, ok := index[key]
		if !ok {
			g = &partitionGroup{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	return groups
}

// ExecuteBatch writes rows to tableName per the intent: rows are
// grouped by partition key, each group split into chunks of at most
// MaxTransactionRows, and each chunk submitted as one atomic
// transaction, sequentially, in partition order then row order.
//
// A rejected chunk is recovered locally: when the store attributes a
// conflict or malformed-request failure to one row of a multi-row
// chunk, that row is dropped and the remainder re-attempted. A
// single-row chunk, or a rejection without an index, drops the whole
// chunk without retrying it; retrying would loop forever with no way
// to exclude a culprit. Any other failure marks the whole chunk failed
// and moves on.
//
// Only context cancellation aborts the run with an error; every other
// failure is absorbed into the returned BatchResult.
func (c *Client) ExecuteBatch(ctx context.Context, tableName string, intent Intent, rows []*table.Row, softDelete, hardDelete bool) (BatchResult, error) {
	kind := actionKind(intent, softDelete, hardDelete)
	if intent == IntentDelete && kind == UpdateMergeRow {
		for _, r := range rows {
			r.Set(table.ColumnIsDeleted, &table.PropertyBool{Value: true})
		}
	}

	var res BatchResult
	for _, g := range groupByPartition(rows) {
		pending := g.rows
		for len(pending) > 0 {
			n := min(len(pending), MaxTransactionRows)
			chunk := pending[:n]

			actions := make([]Action, n)
			for i, r := range chunk {
				actions[i] = Action{Kind: kind, Row: r}
			}

			c.log.Debug().
				Str("table", tableName).
				Str("partition", chunk[0].PartitionKey()).
				Str("action", kind.String()).
				Int("rows", n).
				Msg("submitting chunk")

			err := c.store.SubmitTransaction(ctx, tableName, actions)
			if err == nil {
				res.Passed += n
				pending = pending[n:]
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}

			var terr *TransactionError
			if errors.As(err, &terr) && terr.recoverable() {
				idx := terr.FailedIndex
				if n == 1 || idx < 0 || idx >= n {
					// No usable index: drop the chunk, don't retry.
					res.Failed += n
					res.Messages = append(res.Messages, fmt.Sprintf(
						"partition %s: dropped chunk of %d rows starting at row %s: %s",
						chunk[0].PartitionKey(), n, chunk[0].RowKey(), terr.Code))
					pending = pending[n:]
					continue
				}
				res.Failed++
				res.Messages = append(res.Messages, fmt.Sprintf(
					"partition %s: dropped row %s: %s",
					chunk[idx].PartitionKey(), chunk[idx].RowKey(), terr.Code))
				pending = append(pending[:idx:idx], pending[idx+1:]...)
				continue
			}

			// Unclassified failure: the whole chunk is failed, one
			// diagnostic per row, no retry.
			res.Failed += n
			for _, r := range chunk {
				res.Messages = append(res.Messages, fmt.Sprintf(
					"partition %s: row %s failed: %v", r.PartitionKey(), r.RowKey(), err))
			}
			pending = pending[n:]
		}
	}
	return res, nil
}
