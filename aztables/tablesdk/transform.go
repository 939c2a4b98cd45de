package tablesdk

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/acksell/nadella/aztables/table"
	"github.com/google/uuid"
)

// ToRow converts a domain instance into a generic row record using its
// type's metadata.
//
// With minimal set, only the keys and the concurrency token are
// populated; columns are not materialized. Used ahead of deletes where
// coercing column values would be wasted work.
//
// Key derivation: an empty partition key falls back to the field's
// configured default; an empty row key is auto-generated as a fresh
// UUID when the field opts in. Otherwise the write fails with
// *MissingKeyError.
func ToRow(md *Metadata, v Entity, minimal bool) (*table.Row, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}

	if md.PartitionKey == nil {
		return nil, &DefinitionError{Type: md.Type.String(), Reason: "no partition key field"}
	}
	if md.RowKey == nil {
		return nil, &DefinitionError{Type: md.Type.String(), Reason: "no row key field"}
	}

	pk := rv.FieldByIndex(md.PartitionKey.Index).String()
	if pk == "" {
		if md.PartitionKey.Default == "" {
			return nil, &MissingKeyError{Type: md.Type.String(), Role: "partition key"}
		}
		pk = md.PartitionKey.Default
	}

	rk := rv.FieldByIndex(md.RowKey.Index).String()
	if rk == "" {
		if !md.RowKey.AutoGen {
			return nil, &MissingKeyError{Type: md.Type.String(), Role: "row key"}
		}
		rk = uuid.NewString()
		if f := rv.FieldByIndex(md.RowKey.Index); f.CanSet() {
			f.SetString(rk)
		}
	}

	row, err := table.NewRow(pk, rk)
	if err != nil {
		return nil, err
	}
	if md.ETag != nil {
		row.ETag = rv.FieldByIndex(md.ETag.Index).String()
	}
	if minimal {
		return row, nil
	}

	// Every non-delete write on a soft-delete type resurfaces the row.
	if md.SoftDelete {
		row.Set(table.ColumnIsDeleted, &table.PropertyBool{Value: false})
	}

	for i := range md.Columns {
		f := &md.Columns[i]
		fv := rv.FieldByIndex(f.Index)
		if f.JSON {
			if isNilValue(fv) {
				continue
			}
			data, err := json.Marshal(fv.Interface())
			if err != nil {
				return nil, &CoercionError{From: f.Type.String(), To: "json string", Err: err}
			}
			row.Set(f.Column, &table.PropertyString{Value: string(data)})
			continue
		}
		p, err := toNative(fv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		row.Set(f.Column, p)
	}
	return row, nil
}

// FromRow populates the domain instance dst (a non-nil pointer) from a
// row record. Key, concurrency token and timestamp fields come from the
// row's reserved attributes. Absent columns leave their field at the
// zero value. A JSON-flagged column holding a non-string stored value
// is data corruption and fails; it is never silently skipped.
func FromRow(md *Metadata, row *table.Row, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("nadella: destination must be a non-nil pointer, got %T", dst)
	}
	rv = rv.Elem()

	if md.PartitionKey != nil {
		rv.FieldByIndex(md.PartitionKey.Index).SetString(row.PartitionKey())
	}
	if md.RowKey != nil {
		rv.FieldByIndex(md.RowKey.Index).SetString(row.RowKey())
	}
	if md.ETag != nil {
		rv.FieldByIndex(md.ETag.Index).SetString(row.ETag)
	}
	if md.Timestamp != nil {
		rv.FieldByIndex(md.Timestamp.Index).Set(reflect.ValueOf(row.Timestamp))
	}

	for i := range md.Columns {
		f := &md.Columns[i]
		fv := rv.FieldByIndex(f.Index)
		p := row.Get(f.Column)
		if p == nil {
			fv.SetZero()
			continue
		}
		if f.JSON {
			s, ok := p.(*table.PropertyString)
			if !ok {
				return &CoercionError{
					From: propKind(p),
					To:   f.Type.String(),
					Err:  fmt.Errorf("column %s is JSON-encoded but holds a non-string value", f.Column),
				}
			}
			if err := json.Unmarshal([]byte(s.Value), fv.Addr().Interface()); err != nil {
				return &CoercionError{From: "json string", To: f.Type.String(), Err: err}
			}
			continue
		}
		if err := FromNative(p, fv); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func isNilValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
