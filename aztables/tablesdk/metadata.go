package tablesdk

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/acksell/nadella/aztables/table"
	"github.com/google/uuid"
)

// Entity is the contract every mapped type implements. Role and column
// mapping is declared with `tables:"..."` struct tags; the table name
// comes from here so it stays next to the type.
type Entity interface {
	TableName() string
}

// SoftDeleter marks a mapped type as soft-deleting: deletes tag the
// reserved IsDeleted column instead of removing the row.
type SoftDeleter interface {
	SoftDelete() bool
}

// Field describes one mapped struct field.
type Field struct {
	Name  string
	Index []int
	Type  reflect.Type

	// Column is the mapped column name. Role fields map to their
	// reserved column and leave this empty.
	Column string

	// JSON marks the column for nested JSON serialization.
	JSON bool

	// Default is the fallback value applied when a partition key
	// coerces to empty.
	Default string

	// AutoGen assigns a fresh UUID string when a row key is empty.
	AutoGen bool

	// Native reports whether the declared type is already one of the
	// storage-native kinds (directly or behind a pointer).
	Native bool
}

// Metadata is the immutable mapping record for one domain type. Built
// once on first use and shared by every caller afterwards.
type Metadata struct {
	Type       reflect.Type
	Table      string
	SoftDelete bool

	PartitionKey *Field
	RowKey       *Field
	ETag         *Field
	Timestamp    *Field

	Columns []Field
}

// metadataCache maps reflect.Type to *Metadata. Reads are lock-free;
// LoadOrStore makes concurrent first discoveries converge on one
// instance.
var metadataCache sync.Map

// MetadataOf discovers (or returns the cached) mapping metadata for
// the dynamic type of v. v may be a value or a pointer to one.
func MetadataOf(v Entity) (*Metadata, error) {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := metadataCache.Load(t); ok {
		return cached.(*Metadata), nil
	}
	md, err := discover(t, v.TableName(), softDeleteOf(v))
	if err != nil {
		return nil, err
	}
	actual, _ := metadataCache.LoadOrStore(t, md)
	return actual.(*Metadata), nil
}

func softDeleteOf(v Entity) bool {
	if sd, ok := v.(SoftDeleter); ok {
		return sd.SoftDelete()
	}
	return false
}

func discover(t reflect.Type, tableName string, softDelete bool) (*Metadata, error) {
	if t.Kind() != reflect.Struct {
		return nil, &DefinitionError{Type: t.String(), Reason: "not a struct type"}
	}

	md := &Metadata{
		Type:       t,
		Table:      tableName,
		SoftDelete: softDelete,
	}

	seenColumns := make(map[string]string) // column -> field name
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}

		tag, opts := parseTag(sf.Tag.Get("tables"))
		if tag == "-" {
			continue
		}

		f := Field{
			Name:   sf.Name,
			Index:  sf.Index,
			Type:   sf.Type,
			Native: isNativeType(sf.Type),
		}

		switch strings.ToLower(tag) {
		case "partitionkey":
			if md.PartitionKey != nil {
				return nil, &DefinitionError{Type: t.String(), Reason: "multiple partition key fields"}
			}
			if sf.Type.Kind() != reflect.String {
				return nil, &DefinitionError{Type: t.String(), Reason: fmt.Sprintf("partition key field %s must be a string", sf.Name)}
			}
			f.Default = opts.value("default")
			md.PartitionKey = &f

		case "rowkey":
			if md.RowKey != nil {
				return nil, &DefinitionError{Type: t.String(), Reason: "multiple row key fields"}
			}
			if sf.Type.Kind() != reflect.String {
				return nil, &DefinitionError{Type: t.String(), Reason: fmt.Sprintf("row key field %s must be a string", sf.Name)}
			}
			f.AutoGen = opts.has("autogen")
			md.RowKey = &f

		case "etag":
			if md.ETag != nil {
				return nil, &DefinitionError{Type: t.String(), Reason: "multiple concurrency token fields"}
			}
			if sf.Type.Kind() != reflect.String {
				return nil, &DefinitionError{Type: t.String(), Reason: fmt.Sprintf("concurrency token field %s must be a string", sf.Name)}
			}
			md.ETag = &f

		case "timestamp":
			if md.Timestamp != nil {
				return nil, &DefinitionError{Type: t.String(), Reason: "multiple timestamp fields"}
			}
			if sf.Type != timeType {
				return nil, &DefinitionError{Type: t.String(), Reason: fmt.Sprintf("timestamp field %s must be a time.Time", sf.Name)}
			}
			md.Timestamp = &f

		default:
			column := tag
			if column == "" {
				column = sf.Name
			}
			if isReservedColumn(column) {
				return nil, &DefinitionError{Type: t.String(), Reason: fmt.Sprintf("field %s maps to reserved column %q", sf.Name, column)}
			}
			if prev, dup := seenColumns[column]; dup {
				return nil, &DefinitionError{Type: t.String(), Reason: fmt.Sprintf("fields %s and %s both map to column %q", prev, sf.Name, column)}
			}
			seenColumns[column] = sf.Name
			f.Column = column
			f.JSON = opts.has("json")
			md.Columns = append(md.Columns, f)
		}
	}

	if md.PartitionKey == nil && md.RowKey == nil && len(md.Columns) == 0 {
		return nil, &DefinitionError{Type: t.String(), Reason: "no mapped fields"}
	}
	return md, nil
}

func isReservedColumn(name string) bool {
	switch name {
	case table.ColumnPartitionKey, table.ColumnRowKey, table.ColumnTimestamp, table.ColumnETag, table.ColumnIsDeleted:
		return true
	}
	return false
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// isNativeType reports whether t (or its pointee) is one of the
// storage-native kinds.
func isNativeType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType || t == uuidType {
		return true
	}
	switch t {
	case reflect.TypeOf(""), reflect.TypeOf(false), reflect.TypeOf(int64(0)),
		reflect.TypeOf(uint64(0)), reflect.TypeOf(float64(0)), reflect.TypeOf([]byte(nil)):
		return true
	}
	return false
}

// tagOptions is the comma-separated option list trailing the tag name.
type tagOptions []string

func parseTag(tag string) (string, tagOptions) {
	parts := strings.Split(tag, ",")
	return strings.TrimSpace(parts[0]), tagOptions(parts[1:])
}

func (o tagOptions) has(name string) bool {
	for _, opt := range o {
		if strings.TrimSpace(opt) == name {
			return true
		}
	}
	return false
}

func (o tagOptions) value(name string) string {
	prefix := name + "="
	for _, opt := range o {
		opt = strings.TrimSpace(opt)
		if strings.HasPrefix(opt, prefix) {
			return opt[len(prefix):]
		}
	}
	return ""
}
