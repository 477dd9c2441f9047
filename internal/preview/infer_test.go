package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ColumnType
	}{
		{"no values", nil, TypeUnknown},
		{"integers", []string{"1", "-2", "+3"}, TypeNumber},
		{"decimals", []string{"1.5", ".25", "7."}, TypeNumber},
		{"zero and one are numbers", []string{"1", "0"}, TypeNumber},
		{"booleans", []string{"true", "false", "true"}, TypeBoolean},
		{"booleans any case", []string{"TRUE", "False"}, TypeBoolean},
		{"text", []string{"hello", "world"}, TypeString},
		{"text with numbers", []string{"hello", "42"}, TypeString},
		{"text with blank", []string{"hello", ""}, TypeUnknown},
		{"all blank", []string{"", "  "}, TypeUnknown},
		{"numbers and booleans", []string{"1", "true"}, TypeUnknown},
		{"number with blank", []string{"1", ""}, TypeUnknown},
		{"padded number", []string{" 42 "}, TypeNumber},
		{"exponent is text", []string{"1e5"}, TypeString},
		{"thousands separator is text", []string{"1,000"}, TypeString},
		{"lone sign is text", []string{"-"}, TypeString},
		{"lone dot is text", []string{"."}, TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.values))
		})
	}
}

func TestIsNumeric(t *testing.T) {
	for _, v := range []string{"0", "-0", "123", "3.14", "+.5", "10."} {
		assert.True(t, IsNumeric(v), v)
	}
	for _, v := range []string{"", "abc", "1.2.3", "--1", "0x10", "1 2"} {
		assert.False(t, IsNumeric(v), v)
	}
}
