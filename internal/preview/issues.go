package preview

import (
	"fmt"
	"strings"
)

// Severity grades a preview issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a human-readable observation about a preview, such as a
// repeated header or a column with no data. Issues never block an upload.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// maxListedColumns is how many names are spelled out before the rest
// are summarized as "and N more".
const maxListedColumns = 3

// Analyze inspects a preview and reports things worth checking before
// the data is used. It is separate from Parse so callers that only need
// the preview pay nothing for it.
func Analyze(res *Result) []Issue {
	if res == nil {
		return nil
	}
	var issues []Issue

	first := make(map[string]int, len(res.Columns))
	for i, name := range res.Columns {
		j, seen := first[name]
		if !seen {
			first[name] = i
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Column %q appears more than once (column %d and %d).", name, j+1, i+1),
		})
	}

	names := uniqueColumns(res.Columns)

	var empty []string
	for _, name := range names {
		if columnEmpty(res, name) {
			empty = append(empty, name)
		}
	}
	if len(empty) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityInfo,
			Message: fmt.Sprintf("In this preview, these columns have no data: %s. Check if that's expected.",
				listColumns(empty)),
		})
	}

	if len(res.Rows) > 0 {
		unknown := 0
		for _, name := range names {
			if t, ok := res.Types[name]; !ok || t == TypeUnknown {
				unknown++
			}
		}
		if unknown > 0 {
			issues = append(issues, Issue{
				Severity: SeverityInfo,
				Message: fmt.Sprintf("%d column(s) look like text or mixed values. You can still use them; we're just noting the type.",
					unknown),
			})
		}
	}

	return issues
}

func uniqueColumns(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func columnEmpty(res *Result, name string) bool {
	for _, row := range res.Rows {
		if !IsBlank(row[name]) {
			return false
		}
	}
	return true
}

func listColumns(names []string) string {
	if len(names) <= maxListedColumns {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:2], ", "), len(names)-2)
}
