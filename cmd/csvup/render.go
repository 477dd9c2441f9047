package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/JonMunkholm/csvpreview/internal/preview"
)

// maxCellWidth truncates long values so the table stays readable.
const maxCellWidth = 32

// renderPreview prints the column types, up to rows sample rows, and the
// "things to check" list.
func renderPreview(w io.Writer, res *preview.Result, rows int) {
	if res == nil || len(res.Columns) == 0 {
		fmt.Fprintln(w, gray("(empty file)"))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))

	types := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		types[i] = string(res.Types[col])
	}
	fmt.Fprintln(tw, strings.Join(types, "\t"))

	n := res.RowCount()
	if rows > 0 && rows < n {
		n = rows
	}
	for i := 0; i < n; i++ {
		cells := make([]string, len(res.Columns))
		for j, col := range res.Columns {
			cells[j] = truncate(res.Value(i, col), maxCellWidth)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()

	if n < res.RowCount() {
		fmt.Fprintln(w, gray(fmt.Sprintf("... %d more rows in preview", res.RowCount()-n)))
	}

	issues := preview.Analyze(res)
	if len(issues) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Things to check"))
	for _, is := range issues {
		marker := gray("i")
		if is.Severity == preview.SeverityWarning {
			marker = yellow("!")
		}
		fmt.Fprintf(w, "  %s %s\n", marker, is.Message)
	}
}

func truncate(s string, max int) string {
	s = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ").Replace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
