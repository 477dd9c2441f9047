package preview

import (
	"regexp"
	"strings"
)

// numericPattern accepts optionally signed base-10 integers and decimals
// such as "42", "-3.5", "+.25" and "7.".
var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// IsNumeric reports whether v parses fully as a base-10 number.
// Surrounding whitespace is ignored.
func IsNumeric(v string) bool {
	return numericPattern.MatchString(strings.TrimSpace(v))
}

// IsBoolean reports whether v is "true" or "false" in any letter case.
func IsBoolean(v string) bool {
	v = strings.TrimSpace(v)
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "false")
}

// IsBlank reports whether v is empty or whitespace only.
func IsBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}

// tally accumulates the classification of one column's values without
// retaining them.
type tally struct {
	total   int
	numeric int
	boolean int
	blank   int
}

func (t *tally) add(v string) {
	t.total++
	switch {
	case IsBlank(v):
		t.blank++
	case IsNumeric(v):
		t.numeric++
	case IsBoolean(v):
		t.boolean++
	}
}

// result applies the precedence number > boolean > string > unknown.
func (t *tally) result() ColumnType {
	switch {
	case t.total == 0:
		return TypeUnknown
	case t.numeric == t.total:
		return TypeNumber
	case t.boolean == t.total:
		return TypeBoolean
	case t.blank == 0 && t.text() > 0:
		return TypeString
	default:
		return TypeUnknown
	}
}

// text counts values that are neither blank, numeric nor boolean.
func (t *tally) text() int {
	return t.total - t.numeric - t.boolean - t.blank
}

// InferType classifies a column from its values. An empty slice is
// unknown. A column is a string column only when it has no blank value
// and at least one value that is neither numeric nor boolean; every
// other mix is unknown.
func InferType(values []string) ColumnType {
	var t tally
	for _, v := range values {
		t.add(v)
	}
	return t.result()
}
