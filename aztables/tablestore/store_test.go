package tablestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/nadella/aztables/table"
	"github.com/acksell/nadella/aztables/tablesdk"
)

var ordersTable = table.Definition{Name: "orders"}

func newTestStore(t *testing.T, defs ...table.Definition) *Store {
	t.Helper()
	s, err := New(Options{InMemory: true}, defs...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func newRow(t *testing.T, pk, rk string) *table.Row {
	t.Helper()
	r, err := table.NewRow(pk, rk)
	require.NoError(t, err)
	return r
}

func TestStore_TableLifecycle(t *testing.T) {
	s := newTestStore(t, ordersTable)
	ctx := context.Background()

	t.Run("registered at construction", func(t *testing.T) {
		ok, err := s.TableExists(ctx, "orders")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown table rejects operations", func(t *testing.T) {
		err := s.Submit(ctx, "nope", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r")})
		assert.ErrorContains(t, err, "table not found")

		_, err = s.Query(ctx, tablesdk.QueryRequest{Table: "nope"})
		assert.ErrorContains(t, err, "table not found")
	})

	t.Run("create is idempotent", func(t *testing.T) {
		require.NoError(t, s.CreateTableIfNotExists(ctx, table.Definition{Name: "orders", SoftDelete: true}))
		def, err := s.getTable("orders")
		require.NoError(t, err)
		assert.False(t, def.SoftDelete, "re-creating keeps the original definition")
	})

	t.Run("create then use", func(t *testing.T) {
		require.NoError(t, s.CreateTableIfNotExists(ctx, table.Definition{Name: "fresh"}))
		require.NoError(t, s.Submit(ctx, "fresh", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r")}))
	})

	t.Run("delete removes rows", func(t *testing.T) {
		require.NoError(t, s.CreateTableIfNotExists(ctx, table.Definition{Name: "doomed"}))
		require.NoError(t, s.Submit(ctx, "doomed", tablesdk.Action{Kind: tablesdk.AddRow, Row: newRow(t, "p", "r")}))
		require.NoError(t, s.DeleteTable(ctx, "doomed"))

		ok, err := s.TableExists(ctx, "doomed")
		require.NoError(t, err)
		assert.False(t, ok)

		// Re-creating the table must not resurrect old rows.
		require.NoError(t, s.CreateTableIfNotExists(ctx, table.Definition{Name: "doomed"}))
		rows, err := s.Query(ctx, tablesdk.QueryRequest{Table: "doomed"})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("delete unknown table fails", func(t *testing.T) {
		assert.ErrorContains(t, s.DeleteTable(ctx, "never"), "table not found")
	})
}

func TestRowKeyLayout(t *testing.T) {
	// Table and partition boundaries must be unambiguous so one table's
	// prefix can never cover another's rows.
	assert.Equal(t, []byte("t\x00orders\x00p\x00r"), rowKey("orders", "p", "r"))
	assert.Equal(t, []byte("t\x00orders\x00"), tablePrefix("orders"))
	assert.NotEqual(t, rowKey("orders", "p", "r"), rowKey("order", "sp", "r"))
}
