package tablesdk

import (
	"context"
	"encoding/base64"
	"iter"
	"strconv"
	"strings"

	"github.com/acksell/nadella/aztables/table"
)

// JoinKind selects the join semantics emulated by FilterRelated.
type JoinKind int

const (
	// RetainWhenHasAny keeps a primary row iff the related probe
	// returns at least one row (inner-join existence semantics).
	RetainWhenHasAny JoinKind = iota
	// RetainWhenEmpty keeps a primary row iff the related probe
	// returns nothing (anti-join semantics).
	RetainWhenEmpty
)

// FilterRelated emulates join semantics row by row: for each primary
// row, every $(ColumnName) token in the template (including
// $(PartitionKey), $(RowKey), $(Timestamp) and $(ETag)) is substituted
// with that row's value, and the resulting predicate probed against
// the related table with a result cap of one.
//
// This is a nested-loop semi-join: one probe per primary row, strictly
// sequential, no caching of repeated predicates. Key-value predicates
// are assumed cheap and distinct per row.
func (c *Client) FilterRelated(ctx context.Context, primary []*table.Row, relatedTable, filterTemplate string, kind JoinKind) iter.Seq2[*table.Row, error] {
	return func(yield func(*table.Row, error) bool) {
		for _, row := range primary {
			predicate := substituteRow(filterTemplate, row)
			related, err := c.store.Query(ctx, QueryRequest{
				Table:  relatedTable,
				Filter: predicate,
				Top:    1,
			})
			if err != nil {
				yield(nil, err)
				return
			}
			keep := len(related) > 0
			if kind == RetainWhenEmpty {
				keep = !keep
			}
			if keep && !yield(row, nil) {
				return
			}
		}
	}
}

// substituteRow replaces $(Name) tokens with the row's values. A
// missing value becomes the literal null, and any quoted 'null' the
// substitution produced is unwrapped to a bare null.
func substituteRow(template string, row *table.Row) string {
	var b strings.Builder
	rest := template
	substitutedNull := false
	for {
		start := strings.Index(rest, "$(")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], ")")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		name := rest[start+2 : start+end]
		b.WriteString(rest[:start])
		value, ok := rowValueText(row, name)
		if !ok {
			value = "null"
			substitutedNull = true
		}
		b.WriteString(value)
		rest = rest[start+end+1:]
	}
	out := b.String()
	if substitutedNull {
		out = strings.ReplaceAll(out, "'null'", "null")
	}
	return out
}

func rowValueText(row *table.Row, column string) (string, bool) {
	switch column {
	case table.ColumnPartitionKey:
		return row.PartitionKey(), true
	case table.ColumnRowKey:
		return row.RowKey(), true
	case table.ColumnETag:
		if row.ETag == "" {
			return "", false
		}
		return row.ETag, true
	case table.ColumnTimestamp:
		if row.Timestamp.IsZero() {
			return "", false
		}
		return row.Timestamp.UTC().Format("2006-01-02T15:04:05.9999999Z"), true
	}
	p := row.Get(column)
	if p == nil {
		return "", false
	}
	return propertyText(p), true
}

func propertyText(p table.Property) string {
	switch v := p.(type) {
	case *table.PropertyString:
		return v.Value
	case *table.PropertyBool:
		return strconv.FormatBool(v.Value)
	case *table.PropertyInt64:
		return strconv.FormatInt(v.Value, 10)
	case *table.PropertyUint64:
		return strconv.FormatUint(v.Value, 10)
	case *table.PropertyDouble:
		return strconv.FormatFloat(v.Value, 'g', -1, 64)
	case *table.PropertyBinary:
		return base64.StdEncoding.EncodeToString(v.Value)
	case *table.PropertyGUID:
		return v.Value.String()
	case *table.PropertyDateTime:
		return v.Value.UTC().Format("2006-01-02T15:04:05.9999999Z")
	default:
		return ""
	}
}
