package table

import (
	"time"
)

// Reserved column names. A mapped column may not reuse one of these
// unless the field is the corresponding reserved role.
const (
	ColumnPartitionKey = "PartitionKey"
	ColumnRowKey       = "RowKey"
	ColumnTimestamp    = "Timestamp"
	ColumnETag         = "ETag"
	ColumnIsDeleted    = "IsDeleted"
)

// ETagAny is the wildcard concurrency token: ignore the stored token,
// always succeed.
const ETagAny = "*"

// Row is one row as it exists in the store: a composite key, the
// store-assigned timestamp and concurrency token, and an untyped
// property bag of storage-native values.
//
// Keys are validated on every assignment; construct rows via NewRow or
// the setters rather than writing the fields directly.
type Row struct {
	partitionKey string
	rowKey       string

	// Timestamp is assigned by the store on write. Ignored on persist.
	Timestamp time.Time

	// ETag is the concurrency token. ETagAny bypasses the check.
	ETag string

	Properties map[string]Property
}

// NewRow constructs a row with validated keys and an empty property bag.
func NewRow(partitionKey, rowKey string) (*Row, error) {
	r := &Row{Properties: make(map[string]Property)}
	if err := r.SetPartitionKey(partitionKey); err != nil {
		return nil, err
	}
	if err := r.SetRowKey(rowKey); err != nil {
		return nil, err
	}
	return r, nil
}

// SetPartitionKey validates and assigns the partition key.
func (r *Row) SetPartitionKey(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	r.partitionKey = key
	return nil
}

// SetRowKey validates and assigns the row key.
func (r *Row) SetRowKey(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	r.rowKey = key
	return nil
}

func (r *Row) PartitionKey() string {
	return r.partitionKey
}

func (r *Row) RowKey() string {
	return r.rowKey
}

// Set stores a property value. A nil value removes the column, since
// "column absent" is cleaner than persisting an empty placeholder.
func (r *Row) Set(column string, value Property) {
	if r.Properties == nil {
		r.Properties = make(map[string]Property)
	}
	if value == nil {
		delete(r.Properties, column)
		return
	}
	r.Properties[column] = value
}

// Get returns the property value for a column, or nil if absent.
func (r *Row) Get(column string) Property {
	return r.Properties[column]
}

// Clone returns a deep-enough copy: the property map is copied, the
// property values themselves are treated as immutable.
func (r *Row) Clone() *Row {
	out := &Row{
		partitionKey: r.partitionKey,
		rowKey:       r.rowKey,
		Timestamp:    r.Timestamp,
		ETag:         r.ETag,
		Properties:   make(map[string]Property, len(r.Properties)),
	}
	for k, v := range r.Properties {
		out.Properties[k] = v
	}
	return out
}
