package tablestore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/nadella/aztables/table"
	"github.com/acksell/nadella/aztables/tablesdk"
)

func getRow(t *testing.T, s *Store, tableName, pk, rk string) *table.Row {
	t.Helper()
	rows, err := s.Query(context.Background(), tablesdk.QueryRequest{
		Table:  tableName,
		Filter: fmt.Sprintf("PartitionKey eq '%s' and RowKey eq '%s'", pk, rk),
	})
	require.NoError(t, err)
	if len(rows) == 0 {
		return nil
	}
	require.Len(t, rows, 1)
	return rows[0]
}

func TestStore_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("add assigns timestamp and token", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		in := newRow(t, "p", "r")
		in.Set("Status", &table.PropertyString{Value: "open"})
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: in}))

		stored := getRow(t, s, "orders", "p", "r")
		require.NotNil(t, stored)
		assert.False(t, stored.Timestamp.IsZero())
		assert.NotEmpty(t, stored.ETag)
		assert.Equal(t, &table.PropertyString{Value: "open"}, stored.Get("Status"))
	})

	t.Run("add conflicts with existing row", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r")}))

		err := s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r")})
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeConflict, terr.Code)
		assert.Equal(t, 0, terr.FailedIndex)
	})

	t.Run("update merges into existing columns", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		in := newRow(t, "p", "r")
		in.Set("Status", &table.PropertyString{Value: "open"})
		in.Set("Count", &table.PropertyInt64{Value: 1})
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: in}))
		first := getRow(t, s, "orders", "p", "r")

		patch := newRow(t, "p", "r")
		patch.Set("Count", &table.PropertyInt64{Value: 2})
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpdateMergeRow, Row: patch}))

		stored := getRow(t, s, "orders", "p", "r")
		assert.Equal(t, &table.PropertyString{Value: "open"}, stored.Get("Status"), "untouched column survives")
		assert.Equal(t, &table.PropertyInt64{Value: 2}, stored.Get("Count"))
		assert.NotEqual(t, first.ETag, stored.ETag, "every write rotates the token")
	})

	t.Run("update of missing row is not found", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		err := s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpdateMergeRow, Row: newRow(t, "p", "r")})
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeNotFound, terr.Code)
	})

	t.Run("upsert inserts then merges", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		in := newRow(t, "p", "r")
		in.Set("Status", &table.PropertyString{Value: "open"})
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpsertMergeRow, Row: in}))

		patch := newRow(t, "p", "r")
		patch.Set("Count", &table.PropertyInt64{Value: 9})
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpsertMergeRow, Row: patch}))

		stored := getRow(t, s, "orders", "p", "r")
		assert.Equal(t, &table.PropertyString{Value: "open"}, stored.Get("Status"))
		assert.Equal(t, &table.PropertyInt64{Value: 9}, stored.Get("Count"))
	})

	t.Run("delete removes the row", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r")}))
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.DeleteRow, Row: newRow(t, "p", "r")}))
		assert.Nil(t, getRow(t, s, "orders", "p", "r"))
	})

	t.Run("delete of missing row is not found", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		err := s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.DeleteRow, Row: newRow(t, "p", "r")})
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeNotFound, terr.Code)
	})
}

func TestStore_ConcurrencyToken(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, ordersTable)

	require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r")}))
	current := getRow(t, s, "orders", "p", "r").ETag

	t.Run("stale token conflicts", func(t *testing.T) {
		patch := newRow(t, "p", "r")
		patch.ETag = "stale"
		err := s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpdateMergeRow, Row: patch})
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeConflict, terr.Code)
	})

	t.Run("matching token passes and rotates", func(t *testing.T) {
		patch := newRow(t, "p", "r")
		patch.ETag = current
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpdateMergeRow, Row: patch}))
		assert.NotEqual(t, current, getRow(t, s, "orders", "p", "r").ETag)
	})

	t.Run("wildcard and empty token bypass the check", func(t *testing.T) {
		patch := newRow(t, "p", "r")
		patch.ETag = table.ETagAny
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpdateMergeRow, Row: patch}))

		patch = newRow(t, "p", "r")
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.UpdateMergeRow, Row: patch}))
	})
}

func TestStore_SubmitTransaction(t *testing.T) {
	ctx := context.Background()

	addActions := func(t *testing.T, pk string, n int) []tablesdk.Action {
		t.Helper()
		actions := make([]tablesdk.Action, n)
		for i := range actions {
			actions[i] = tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, pk, fmt.Sprintf("r%03d", i))}
		}
		return actions
	}

	t.Run("applies all actions", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		require.NoError(t, s.SubmitTransaction(ctx, "orders", addActions(t, "p", 10)))
		rows, err := s.Query(ctx, tablesdk.QueryRequest{Table: "orders"})
		require.NoError(t, err)
		assert.Len(t, rows, 10)
	})

	t.Run("rejection applies nothing", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r002")}))

		err := s.SubmitTransaction(ctx, "orders", addActions(t, "p", 5))
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeConflict, terr.Code)
		assert.Equal(t, 2, terr.FailedIndex)

		rows, err := s.Query(ctx, tablesdk.QueryRequest{Table: "orders"})
		require.NoError(t, err)
		assert.Len(t, rows, 1, "the batch is all-or-nothing")
	})

	t.Run("oversized batch", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		err := s.SubmitTransaction(ctx, "orders", addActions(t, "p", tablesdk.MaxTransactionRows+1))
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeInvalidInput, terr.Code)
		assert.Equal(t, -1, terr.FailedIndex)
	})

	t.Run("mixed partitions", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		actions := []tablesdk.Action{
			{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r0")},
			{Kind: tablesdk.AddRow, Row: newRow(t, "q", "r1")},
		}
		err := s.SubmitTransaction(ctx, "orders", actions)
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeInvalidInput, terr.Code)
		assert.Equal(t, 1, terr.FailedIndex)
	})

	t.Run("partition comparison is case-sensitive", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		actions := []tablesdk.Action{
			{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r0")},
			{Kind: tablesdk.AddRow, Row: newRow(t, "P", "r1")},
		}
		err := s.SubmitTransaction(ctx, "orders", actions)
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeInvalidInput, terr.Code)
	})

	t.Run("duplicate row keys", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		actions := []tablesdk.Action{
			{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r0")},
			{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r0")},
		}
		err := s.SubmitTransaction(ctx, "orders", actions)
		var terr *tablesdk.TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tablesdk.CodeInvalidInput, terr.Code)
		assert.Equal(t, 1, terr.FailedIndex)
	})

	t.Run("empty transaction is a no-op", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		require.NoError(t, s.SubmitTransaction(ctx, "orders", nil))
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := s.SubmitTransaction(cancelled, "orders", addActions(t, "p", 1))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("mixed action kinds in one batch", func(t *testing.T) {
		s := newTestStore(t, ordersTable)
		seed := newRow(t, "p", "old")
		seed.Set("Status", &table.PropertyString{Value: "open"})
		require.NoError(t, s.Submit(ctx, "orders", tablesdk.Action{Kind: tablesdk.AddRow, Row: seed}))

		patch := newRow(t, "p", "old")
		patch.Set("Status", &table.PropertyString{Value: "closed"})
		require.NoError(t, s.SubmitTransaction(ctx, "orders", []tablesdk.Action{
			{Kind: tablesdk.AddRow, Row: newRow(t, "p", "new")},
			{Kind: tablesdk.UpdateMergeRow, Row: patch},
		}))

		assert.NotNil(t, getRow(t, s, "orders", "p", "new"))
		assert.Equal(t, &table.PropertyString{Value: "closed"}, getRow(t, s, "orders", "p", "old").Get("Status"))
	})
}
