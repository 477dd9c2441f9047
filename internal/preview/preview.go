// Package preview turns an assembled CSV file into a schema preview:
// the header columns, a capped sample of rows, and an inferred type
// for every column.
//
// Parsing is streaming. Only the sampled rows are retained; type
// inference walks every data row but keeps a constant-size tally per
// column, so memory stays bounded by the row cap and column count.
package preview

// ColumnType is the inferred classification of a column's values.
type ColumnType string

const (
	TypeNumber  ColumnType = "number"
	TypeString  ColumnType = "string"
	TypeBoolean ColumnType = "boolean"
	TypeUnknown ColumnType = "unknown"
)

// DefaultMaxRows is the row cap used when callers have no preference.
const DefaultMaxRows = 50

// Result is the derived preview of one CSV file. It is never mutated
// after Parse returns it, so it may be shared between goroutines.
type Result struct {
	// Columns are the header names in file order. Duplicates are kept.
	Columns []string `json:"columns"`

	// Rows maps column name to raw string value for each sampled row.
	Rows []map[string]string `json:"rows"`

	// Types maps column name to its inferred type.
	Types map[string]ColumnType `json:"types"`
}

// RowCount returns the number of sampled rows.
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Value returns the sampled value for column in row i, or "" when the
// row or column is absent.
func (r *Result) Value(i int, column string) string {
	if r == nil || i < 0 || i >= len(r.Rows) {
		return ""
	}
	return r.Rows[i][column]
}
