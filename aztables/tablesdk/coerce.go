package tablesdk

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/acksell/nadella/aztables/table"
	"github.com/google/uuid"
)

// ToNative converts a domain value to its storage-native property.
// Storage-native values pass through unchanged except for a forced UTC
// normalization of temporal values. Non-native types fall back to their
// own textual format support (encoding.TextMarshaler), then to their
// underlying kind. A nil value maps to nil (column absent).
//
// Conversion failures are never repaired or defaulted; they propagate
// as *CoercionError.
func ToNative(v any) (table.Property, error) {
	if v == nil {
		return nil, nil
	}
	return toNative(reflect.ValueOf(v))
}

func toNative(rv reflect.Value) (table.Property, error) {
	if !rv.IsValid() {
		return nil, nil
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType:
		t := rv.Interface().(time.Time)
		if t.IsZero() {
			return nil, nil
		}
		return table.NewDateTime(t), nil
	case uuidType:
		return &table.PropertyGUID{Value: rv.Interface().(uuid.UUID)}, nil
	}

	// A type carrying its own textual format is stored as text. Exact
	// native kinds are handled below, so this only fires for custom
	// types.
	if !isNativeType(rv.Type()) {
		if tm, ok := textMarshaler(rv); ok {
			text, err := tm.MarshalText()
			if err != nil {
				return nil, &CoercionError{From: rv.Type().String(), To: "string", Err: err}
			}
			return &table.PropertyString{Value: string(text)}, nil
		}
	}

	switch rv.Kind() {
	case reflect.String:
		return &table.PropertyString{Value: rv.String()}, nil
	case reflect.Bool:
		return &table.PropertyBool{Value: rv.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &table.PropertyInt64{Value: rv.Int()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &table.PropertyUint64{Value: rv.Uint()}, nil
	case reflect.Float32, reflect.Float64:
		return &table.PropertyDouble{Value: rv.Float()}, nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return &table.PropertyBinary{Value: rv.Bytes()}, nil
		}
	}

	return nil, &CoercionError{From: rv.Type().String(), To: "storage-native value"}
}

// FromNative converts a stored property into the domain value dst.
// The stored kind is not assumed to match the field's native kind:
// cross-kind coercions (string to enum, int64 to uint64, guid to
// string) are attempted strictly and fail with *CoercionError rather
// than defaulting.
func FromNative(p table.Property, dst reflect.Value) error {
	if p == nil {
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return FromNative(p, dst.Elem())
	}

	switch dst.Type() {
	case timeType:
		switch v := p.(type) {
		case *table.PropertyDateTime:
			dst.Set(reflect.ValueOf(v.Value))
			return nil
		case *table.PropertyString:
			t, err := time.Parse(time.RFC3339Nano, v.Value)
			if err != nil {
				return &CoercionError{From: propKind(p), To: "time.Time", Err: err}
			}
			dst.Set(reflect.ValueOf(t.UTC()))
			return nil
		}
		return coercionFailure(p, dst)
	case uuidType:
		switch v := p.(type) {
		case *table.PropertyGUID:
			dst.Set(reflect.ValueOf(v.Value))
			return nil
		case *table.PropertyString:
			id, err := uuid.Parse(v.Value)
			if err != nil {
				return &CoercionError{From: propKind(p), To: "uuid.UUID", Err: err}
			}
			dst.Set(reflect.ValueOf(id))
			return nil
		}
		return coercionFailure(p, dst)
	}

	// Textual wire value into a type with its own parser: strict, an
	// unparsable at-rest value is an error, never a silent default.
	if s, ok := p.(*table.PropertyString); ok && !isNativeType(dst.Type()) {
		if dst.CanAddr() {
			if tu, ok := dst.Addr().Interface().(encoding.TextUnmarshaler); ok {
				if err := tu.UnmarshalText([]byte(s.Value)); err != nil {
					return &CoercionError{From: propKind(p), To: dst.Type().String(), Err: err}
				}
				return nil
			}
		}
	}

	switch dst.Kind() {
	case reflect.String:
		switch v := p.(type) {
		case *table.PropertyString:
			dst.SetString(v.Value)
			return nil
		case *table.PropertyGUID:
			dst.SetString(v.Value.String())
			return nil
		}

	case reflect.Bool:
		if v, ok := p.(*table.PropertyBool); ok {
			dst.SetBool(v.Value)
			return nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(p, dst)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return &CoercionError{From: propKind(p), To: dst.Type().String(), Err: fmt.Errorf("value %d overflows", n)}
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint64(p, dst)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return &CoercionError{From: propKind(p), To: dst.Type().String(), Err: fmt.Errorf("value %d overflows", n)}
		}
		dst.SetUint(n)
		return nil

	case reflect.Float32, reflect.Float64:
		switch v := p.(type) {
		case *table.PropertyDouble:
			dst.SetFloat(v.Value)
			return nil
		case *table.PropertyInt64:
			dst.SetFloat(float64(v.Value))
			return nil
		case *table.PropertyUint64:
			dst.SetFloat(float64(v.Value))
			return nil
		case *table.PropertyString:
			f, err := strconv.ParseFloat(v.Value, 64)
			if err != nil {
				return &CoercionError{From: propKind(p), To: dst.Type().String(), Err: err}
			}
			dst.SetFloat(f)
			return nil
		}

	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			if v, ok := p.(*table.PropertyBinary); ok {
				dst.SetBytes(v.Value)
				return nil
			}
		}
	}

	return coercionFailure(p, dst)
}

func toInt64(p table.Property, dst reflect.Value) (int64, error) {
	switch v := p.(type) {
	case *table.PropertyInt64:
		return v.Value, nil
	case *table.PropertyUint64:
		if v.Value > math.MaxInt64 {
			return 0, &CoercionError{From: propKind(p), To: dst.Type().String(), Err: fmt.Errorf("value %d overflows", v.Value)}
		}
		return int64(v.Value), nil
	case *table.PropertyDouble:
		if v.Value != math.Trunc(v.Value) {
			return 0, &CoercionError{From: propKind(p), To: dst.Type().String(), Err: fmt.Errorf("value %v is not integral", v.Value)}
		}
		return int64(v.Value), nil
	case *table.PropertyString:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return 0, &CoercionError{From: propKind(p), To: dst.Type().String(), Err: err}
		}
		return n, nil
	}
	return 0, coercionFailure(p, dst)
}

func toUint64(p table.Property, dst reflect.Value) (uint64, error) {
	switch v := p.(type) {
	case *table.PropertyUint64:
		return v.Value, nil
	case *table.PropertyInt64:
		if v.Value < 0 {
			return 0, &CoercionError{From: propKind(p), To: dst.Type().String(), Err: fmt.Errorf("value %d is negative", v.Value)}
		}
		return uint64(v.Value), nil
	case *table.PropertyDouble:
		if v.Value != math.Trunc(v.Value) || v.Value < 0 {
			return 0, &CoercionError{From: propKind(p), To: dst.Type().String(), Err: fmt.Errorf("value %v is not a valid unsigned integer", v.Value)}
		}
		return uint64(v.Value), nil
	case *table.PropertyString:
		n, err := strconv.ParseUint(v.Value, 10, 64)
		if err != nil {
			return 0, &CoercionError{From: propKind(p), To: dst.Type().String(), Err: err}
		}
		return n, nil
	}
	return 0, coercionFailure(p, dst)
}

func coercionFailure(p table.Property, dst reflect.Value) error {
	return &CoercionError{From: propKind(p), To: dst.Type().String()}
}

func propKind(p table.Property) string {
	switch p.(type) {
	case *table.PropertyString:
		return "string"
	case *table.PropertyBool:
		return "bool"
	case *table.PropertyInt64:
		return "int64"
	case *table.PropertyUint64:
		return "uint64"
	case *table.PropertyDouble:
		return "double"
	case *table.PropertyBinary:
		return "binary"
	case *table.PropertyGUID:
		return "guid"
	case *table.PropertyDateTime:
		return "datetime"
	default:
		return fmt.Sprintf("%T", p)
	}
}

func textMarshaler(rv reflect.Value) (encoding.TextMarshaler, bool) {
	if tm, ok := rv.Interface().(encoding.TextMarshaler); ok {
		return tm, true
	}
	if rv.CanAddr() {
		if tm, ok := rv.Addr().Interface().(encoding.TextMarshaler); ok {
			return tm, true
		}
	}
	// Pointer-receiver marshaler on a non-addressable value.
	pv := reflect.New(rv.Type())
	pv.Elem().Set(rv)
	if tm, ok := pv.Interface().(encoding.TextMarshaler); ok {
		return tm, true
	}
	return nil, false
}
