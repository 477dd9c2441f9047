package preview

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse reads CSV from r and builds a preview holding at most maxRows
// sampled rows. A negative maxRows is treated as zero.
//
// The first record is the header. Blank and whitespace-only lines are
// skipped, so a trailing newline never yields an empty row. Short records are padded with empty
// values and fields past the header width are ignored. When a header
// name repeats, the rightmost column supplies both the row value and the
// inferred type for that name.
//
// Types are inferred over every data row, not only the sample.
func Parse(r io.Reader, maxRows int) (*Result, error) {
	if maxRows < 0 {
		maxRows = 0
	}

	cr := csv.NewReader(Normalize(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	res := &Result{
		Columns: []string{},
		Rows:    []map[string]string{},
		Types:   map[string]ColumnType{},
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	res.Columns = append(res.Columns, header...)

	tallies := make([]tally, len(res.Columns))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if len(record) == 1 && IsBlank(record[0]) {
			continue
		}

		for i := range tallies {
			tallies[i].add(field(record, i))
		}

		if len(res.Rows) < maxRows {
			row := make(map[string]string, len(res.Columns))
			for i, name := range res.Columns {
				row[name] = strings.Clone(field(record, i))
			}
			res.Rows = append(res.Rows, row)
		}
	}

	for i, name := range res.Columns {
		res.Types[name] = tallies[i].result()
	}
	return res, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(text string, maxRows int) (*Result, error) {
	return Parse(strings.NewReader(text), maxRows)
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
