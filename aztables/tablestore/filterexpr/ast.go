// Package filterexpr parses and evaluates the OData-style predicate
// dialect used in query filters: comparisons between a column
// identifier and a literal, combined with and/or/not and parentheses.
//
//	IsDeleted eq false and PartitionKey eq 'A' and Count gt 3
//
// Supported literals: single-quoted strings (with '' escaping),
// integers, floats, true/false, datetime'RFC3339' and guid'...'.
package filterexpr

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"

	"github.com/acksell/nadella/aztables/table"
)

// Expr is a parsed predicate. Eval never fails: a comparison against a
// missing column or an incomparable kind simply does not match.
type Expr interface {
	Eval(row *table.Row) bool
}

// matchAll is the predicate produced by an empty filter string.
type matchAll struct{}

func (matchAll) Eval(*table.Row) bool { return true }

type andExpr struct {
	left, right Expr
}

func (e *andExpr) Eval(row *table.Row) bool {
	return e.left.Eval(row) && e.right.Eval(row)
}

type orExpr struct {
	left, right Expr
}

func (e *orExpr) Eval(row *table.Row) bool {
	return e.left.Eval(row) || e.right.Eval(row)
}

type notExpr struct {
	inner Expr
}

func (e *notExpr) Eval(row *table.Row) bool {
	return !e.inner.Eval(row)
}

type comparison struct {
	column string
	op     string // eq ne gt ge lt le
	lit    literal
}

// literal is a parsed literal value. Exactly one field is set.
type literal struct {
	str  *string
	num  *float64
	b    *bool
	t    *time.Time
	guid *uuid.UUID
}

func (c *comparison) Eval(row *table.Row) bool {
	p := columnValue(row, c.column)
	if p == nil {
		return false
	}

	switch {
	case c.lit.str != nil:
		v, ok := p.(*table.PropertyString)
		if !ok {
			return false
		}
		return applyOp(c.op, compare(v.Value, *c.lit.str))

	case c.lit.num != nil:
		f, ok := numericValue(p)
		if !ok {
			return false
		}
		return applyOp(c.op, compare(f, *c.lit.num))

	case c.lit.b != nil:
		v, ok := p.(*table.PropertyBool)
		if !ok || (c.op != "eq" && c.op != "ne") {
			return false
		}
		return (v.Value == *c.lit.b) == (c.op == "eq")

	case c.lit.t != nil:
		v, ok := p.(*table.PropertyDateTime)
		if !ok {
			return false
		}
		switch {
		case v.Value.Before(*c.lit.t):
			return applyOp(c.op, -1)
		case v.Value.After(*c.lit.t):
			return applyOp(c.op, 1)
		default:
			return applyOp(c.op, 0)
		}

	case c.lit.guid != nil:
		v, ok := p.(*table.PropertyGUID)
		if !ok || (c.op != "eq" && c.op != "ne") {
			return false
		}
		return (v.Value == *c.lit.guid) == (c.op == "eq")
	}
	return false
}

// columnValue resolves a column name against the property bag and the
// reserved row attributes.
func columnValue(row *table.Row, column string) table.Property {
	switch column {
	case table.ColumnPartitionKey:
		return &table.PropertyString{Value: row.PartitionKey()}
	case table.ColumnRowKey:
		return &table.PropertyString{Value: row.RowKey()}
	case table.ColumnETag:
		return &table.PropertyString{Value: row.ETag}
	case table.ColumnTimestamp:
		return &table.PropertyDateTime{Value: row.Timestamp}
	}
	return row.Get(column)
}

func numericValue(p table.Property) (float64, bool) {
	switch v := p.(type) {
	case *table.PropertyInt64:
		return float64(v.Value), true
	case *table.PropertyUint64:
		return float64(v.Value), true
	case *table.PropertyDouble:
		return v.Value, true
	}
	return 0, false
}

func compare[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func applyOp(op string, cmp int) bool {
	switch op {
	case "eq":
		return cmp == 0
	case "ne":
		return cmp != 0
	case "gt":
		return cmp > 0
	case "ge":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "le":
		return cmp <= 0
	default:
		return false
	}
}
