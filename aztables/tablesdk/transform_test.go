package tablesdk

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/nadella/aztables/table"
)

func TestToRow(t *testing.T) {
	md, err := MetadataOf(account{})
	require.NoError(t, err)

	t.Run("full transform", func(t *testing.T) {
		owner := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		a := account{
			Tenant:  "acme",
			ID:      "acct-1",
			Version: "etag-7",
			Name:    "Alice",
			Age:     30,
			Balance: 12.5,
			Active:  true,
			Owner:   owner,
			Labels:  []string{"vip", "beta"},
		}
		row, err := ToRow(md, a, false)
		require.NoError(t, err)

		assert.Equal(t, "acme", row.PartitionKey())
		assert.Equal(t, "acct-1", row.RowKey())
		assert.Equal(t, "etag-7", row.ETag)
		assert.Equal(t, &table.PropertyString{Value: "Alice"}, row.Get("DisplayName"))
		assert.Equal(t, &table.PropertyInt64{Value: 30}, row.Get("Age"))
		assert.Equal(t, &table.PropertyDouble{Value: 12.5}, row.Get("Balance"))
		assert.Equal(t, &table.PropertyBool{Value: true}, row.Get("Active"))
		assert.Equal(t, &table.PropertyGUID{Value: owner}, row.Get("Owner"))
		assert.Equal(t, &table.PropertyString{Value: `["vip","beta"]`}, row.Get("Labels"))
	})

	t.Run("soft-delete types resurface on write", func(t *testing.T) {
		row, err := ToRow(md, account{Tenant: "acme", ID: "acct-1"}, false)
		require.NoError(t, err)
		assert.Equal(t, &table.PropertyBool{Value: false}, row.Get(table.ColumnIsDeleted))
	})

	t.Run("minimal skips columns", func(t *testing.T) {
		a := account{Tenant: "acme", ID: "acct-1", Version: "etag-7", Name: "Alice"}
		row, err := ToRow(md, a, true)
		require.NoError(t, err)
		assert.Equal(t, "etag-7", row.ETag)
		assert.Empty(t, row.Properties)
	})

	t.Run("partition key default", func(t *testing.T) {
		row, err := ToRow(md, account{ID: "acct-1"}, true)
		require.NoError(t, err)
		assert.Equal(t, "SHARED", row.PartitionKey())
	})

	t.Run("row key autogen writes back", func(t *testing.T) {
		a := &account{Tenant: "acme"}
		row, err := ToRow(md, a, true)
		require.NoError(t, err)
		require.NotEmpty(t, row.RowKey())
		_, err = uuid.Parse(row.RowKey())
		assert.NoError(t, err)
		assert.Equal(t, row.RowKey(), a.ID)
	})

	t.Run("missing keys without fallback", func(t *testing.T) {
		dmd, err := MetadataOf(device{})
		require.NoError(t, err)

		_, err = ToRow(dmd, device{Serial: "sn-1"}, true)
		var merr *MissingKeyError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "partition key", merr.Role)

		_, err = ToRow(dmd, device{Site: "lab"}, true)
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "row key", merr.Role)
	})

	t.Run("nil json column stays absent", func(t *testing.T) {
		row, err := ToRow(md, account{Tenant: "acme", ID: "acct-1"}, false)
		require.NoError(t, err)
		assert.Nil(t, row.Get("Labels"))
	})

	t.Run("invalid derived key", func(t *testing.T) {
		_, err := ToRow(md, account{Tenant: "bad/tenant", ID: "acct-1"}, true)
		var kerr *table.KeyFormatError
		require.ErrorAs(t, err, &kerr)
	})
}

func TestFromRow(t *testing.T) {
	md, err := MetadataOf(account{})
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		owner := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		in := account{
			Tenant:  "acme",
			ID:      "acct-1",
			Name:    "Alice",
			Age:     30,
			Balance: 12.5,
			Active:  true,
			Owner:   owner,
			Labels:  []string{"vip"},
		}
		row, err := ToRow(md, in, false)
		require.NoError(t, err)
		row.ETag = "etag-new"
		row.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		var out account
		require.NoError(t, FromRow(md, row, &out))
		assert.Equal(t, "acme", out.Tenant)
		assert.Equal(t, "acct-1", out.ID)
		assert.Equal(t, "etag-new", out.Version)
		assert.Equal(t, row.Timestamp, out.Modified)
		assert.Equal(t, in.Name, out.Name)
		assert.Equal(t, in.Age, out.Age)
		assert.Equal(t, in.Balance, out.Balance)
		assert.Equal(t, in.Active, out.Active)
		assert.Equal(t, in.Owner, out.Owner)
		assert.Equal(t, in.Labels, out.Labels)
	})

	t.Run("absent columns zero their fields", func(t *testing.T) {
		row, err := table.NewRow("acme", "acct-1")
		require.NoError(t, err)

		out := account{Name: "stale", Age: 99, Labels: []string{"stale"}}
		require.NoError(t, FromRow(md, row, &out))
		assert.Empty(t, out.Name)
		assert.Zero(t, out.Age)
		assert.Nil(t, out.Labels)
	})

	t.Run("non-string json column is corruption", func(t *testing.T) {
		row, err := table.NewRow("acme", "acct-1")
		require.NoError(t, err)
		row.Set("Labels", &table.PropertyInt64{Value: 1})

		var out account
		err = FromRow(md, row, &out)
		var cerr *CoercionError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("destination must be a non-nil pointer", func(t *testing.T) {
		row, err := table.NewRow("acme", "acct-1")
		require.NoError(t, err)
		var nilDst *account
		assert.Error(t, FromRow(md, row, nilDst))
	})
}
