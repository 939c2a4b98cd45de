package table

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Property is the closed set of value kinds the row store can persist
// without extra encoding. Anything else must be coerced (or JSON-encoded)
// into one of these before it reaches a Row.
type Property interface {
	isProperty()
}

type PropertyString struct {
	Value string
}

type PropertyBool struct {
	Value bool
}

type PropertyInt64 struct {
	Value int64
}

type PropertyUint64 struct {
	Value uint64
}

type PropertyDouble struct {
	Value float64
}

type PropertyBinary struct {
	Value []byte
}

type PropertyGUID struct {
	Value uuid.UUID
}

// PropertyDateTime carries a UTC instant. Constructors and coercion
// normalize to UTC before storing; the store never sees local offsets.
type PropertyDateTime struct {
	Value time.Time
}

func (*PropertyString) isProperty()   {}
func (*PropertyBool) isProperty()     {}
func (*PropertyInt64) isProperty()    {}
func (*PropertyUint64) isProperty()   {}
func (*PropertyDouble) isProperty()   {}
func (*PropertyBinary) isProperty()   {}
func (*PropertyGUID) isProperty()     {}
func (*PropertyDateTime) isProperty() {}

// NewDateTime builds a PropertyDateTime normalized to UTC.
func NewDateTime(t time.Time) *PropertyDateTime {
	return &PropertyDateTime{Value: t.UTC()}
}

// PropertiesEqual compares two properties by kind and value.
func PropertiesEqual(a, b Property) bool {
	switch av := a.(type) {
	case *PropertyString:
		if bv, ok := b.(*PropertyString); ok {
			return av.Value == bv.Value
		}
	case *PropertyBool:
		if bv, ok := b.(*PropertyBool); ok {
			return av.Value == bv.Value
		}
	case *PropertyInt64:
		if bv, ok := b.(*PropertyInt64); ok {
			return av.Value == bv.Value
		}
	case *PropertyUint64:
		if bv, ok := b.(*PropertyUint64); ok {
			return av.Value == bv.Value
		}
	case *PropertyDouble:
		if bv, ok := b.(*PropertyDouble); ok {
			return av.Value == bv.Value
		}
	case *PropertyBinary:
		if bv, ok := b.(*PropertyBinary); ok {
			return bytes.Equal(av.Value, bv.Value)
		}
	case *PropertyGUID:
		if bv, ok := b.(*PropertyGUID); ok {
			return av.Value == bv.Value
		}
	case *PropertyDateTime:
		if bv, ok := b.(*PropertyDateTime); ok {
			return av.Value.Equal(bv.Value)
		}
	}
	return false
}
