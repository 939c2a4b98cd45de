package tablesdk

import (
	"strings"

	"github.com/acksell/nadella/aztables/table"
)

// FilterParams are the optional inputs to BuildFilter. Blank values
// omit their clause.
type FilterParams struct {
	PartitionKey string
	RowKey       string
	// Filter is a free-form predicate fragment appended verbatim.
	Filter string
	// IncludeSoftDeleted disables the IsDeleted exclusion clause on
	// soft-delete tables.
	IncludeSoftDeleted bool
}

// BuildFilter assembles a predicate string with deterministic clause
// order: soft-delete exclusion, partition key equality, row key
// equality, free-form fragment, joined by "and". The fixed order keeps
// query strings reproducible even though the predicate language does
// not require it.
func BuildFilter(softDelete bool, p FilterParams) string {
	clauses := make([]string, 0, 4)
	if softDelete && !p.IncludeSoftDeleted {
		clauses = append(clauses, table.ColumnIsDeleted+" eq false")
	}
	if p.PartitionKey != "" {
		clauses = append(clauses, table.ColumnPartitionKey+" eq "+quoteString(p.PartitionKey))
	}
	if p.RowKey != "" {
		clauses = append(clauses, table.ColumnRowKey+" eq "+quoteString(p.RowKey))
	}
	if strings.TrimSpace(p.Filter) != "" {
		clauses = append(clauses, p.Filter)
	}
	return strings.Join(clauses, " and ")
}

// quoteString renders a single-quoted string literal, doubling
// embedded quotes per the predicate dialect.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
