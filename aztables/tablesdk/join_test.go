package tablesdk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/nadella/aztables/table"
)

func TestSubstituteRow(t *testing.T) {
	row := mustRow(t, "P", "R")
	row.ETag = "etag-1"
	row.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 123456700, time.UTC)
	row.Set("OrderID", &table.PropertyString{Value: "ord-9"})
	row.Set("Count", &table.PropertyInt64{Value: 3})
	row.Set("Paid", &table.PropertyBool{Value: true})

	t.Run("reserved attributes", func(t *testing.T) {
		assert.Equal(t, "PartitionKey eq 'P'", substituteRow("PartitionKey eq '$(PartitionKey)'", row))
		assert.Equal(t, "RowKey eq 'R'", substituteRow("RowKey eq '$(RowKey)'", row))
		assert.Equal(t, "ETag eq 'etag-1'", substituteRow("ETag eq '$(ETag)'", row))
		assert.Equal(t,
			"Timestamp eq datetime'2024-05-01T12:00:00.1234567Z'",
			substituteRow("Timestamp eq datetime'$(Timestamp)'", row))
	})

	t.Run("property values", func(t *testing.T) {
		got := substituteRow("Order eq '$(OrderID)' and Count eq $(Count) and Paid eq $(Paid)", row)
		assert.Equal(t, "Order eq 'ord-9' and Count eq 3 and Paid eq true", got)
	})

	t.Run("multiple occurrences", func(t *testing.T) {
		got := substituteRow("A eq '$(OrderID)' or B eq '$(OrderID)'", row)
		assert.Equal(t, "A eq 'ord-9' or B eq 'ord-9'", got)
	})

	t.Run("missing value becomes bare null", func(t *testing.T) {
		got := substituteRow("Ref eq '$(Missing)'", row)
		assert.Equal(t, "Ref eq null", got)
	})

	t.Run("unterminated token passes through", func(t *testing.T) {
		got := substituteRow("Ref eq '$(Broken", row)
		assert.Equal(t, "Ref eq '$(Broken", got)
	})
}

func TestFilterRelated(t *testing.T) {
	ctx := context.Background()

	orders := []*table.Row{
		mustRow(t, "customers", "c1"),
		mustRow(t, "customers", "c2"),
		mustRow(t, "customers", "c3"),
	}

	// c1 and c3 have related rows, c2 has none.
	related := map[string]bool{"c1": true, "c3": true}

	store := NewMockStore()
	var probes []string
	store.QueryHook = func(req QueryRequest) ([]*table.Row, error) {
		probes = append(probes, req.Filter)
		assert.Equal(t, "invoices", req.Table)
		assert.Equal(t, 1, req.Top, "existence probe is capped at one row")
		for rk, ok := range related {
			if ok && req.Filter == "CustomerID eq '"+rk+"'" {
				return []*table.Row{mustRow(t, "inv", rk)}, nil
			}
		}
		return nil, nil
	}
	c := New(store)

	t.Run("retain when has any", func(t *testing.T) {
		probes = nil
		var kept []string
		for row, err := range c.FilterRelated(ctx, orders, "invoices", "CustomerID eq '$(RowKey)'", RetainWhenHasAny) {
			require.NoError(t, err)
			kept = append(kept, row.RowKey())
		}
		assert.Equal(t, []string{"c1", "c3"}, kept)
		assert.Equal(t, []string{
			"CustomerID eq 'c1'",
			"CustomerID eq 'c2'",
			"CustomerID eq 'c3'",
		}, probes, "one probe per primary row, in order")
	})

	t.Run("retain when empty", func(t *testing.T) {
		var kept []string
		for row, err := range c.FilterRelated(ctx, orders, "invoices", "CustomerID eq '$(RowKey)'", RetainWhenEmpty) {
			require.NoError(t, err)
			kept = append(kept, row.RowKey())
		}
		assert.Equal(t, []string{"c2"}, kept)
	})

	t.Run("early break stops probing", func(t *testing.T) {
		probes = nil
		for row, err := range c.FilterRelated(ctx, orders, "invoices", "CustomerID eq '$(RowKey)'", RetainWhenHasAny) {
			require.NoError(t, err)
			assert.Equal(t, "c1", row.RowKey())
			break
		}
		assert.Len(t, probes, 1)
	})

	t.Run("probe failure surfaces once", func(t *testing.T) {
		failing := NewMockStore()
		failing.QueryHook = func(req QueryRequest) ([]*table.Row, error) {
			return nil, errors.New("store unavailable")
		}
		fc := New(failing)

		var errs []error
		for _, err := range fc.FilterRelated(ctx, orders, "invoices", "CustomerID eq '$(RowKey)'", RetainWhenHasAny) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.Error(t, errs[0])
	})
}
