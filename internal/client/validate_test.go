package client

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name string
		file File
		want error
	}{
		{"valid csv", File{Name: "data.csv", Size: 1024, ContentType: "text/csv"}, nil},
		{"upper case extension", File{Name: "export.CSV", Size: 10}, nil},
		{"csv content type", File{Name: "export", Size: 10, ContentType: "application/csv"}, nil},
		{"content type with params", File{Name: "export", Size: 10, ContentType: "text/csv; charset=utf-8"}, nil},
		{"not csv", File{Name: "data.txt", Size: 10, ContentType: "text/plain"}, ErrNotCSV},
		{"empty", File{Name: "data.csv", Size: 0}, ErrEmptyFile},
		{"at limit", File{Name: "data.csv", Size: MaxFileMB * 1024 * 1024}, nil},
		{"over limit", File{Name: "data.csv", Size: (MaxFileMB + 1) * 1024 * 1024}, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateFile(tt.file))
		})
	}

	assert.Contains(t, ErrNotCSV.Error(), "CSV")
	assert.Contains(t, ErrEmptyFile.Error(), "empty")
	assert.Contains(t, ErrFileTooLarge.Error(), "too large")
	assert.Contains(t, ErrFileTooLarge.Error(), strconv.Itoa(MaxFileMB))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"init failed (500)", "We couldn't start the upload. Please try again."},
		{"part 2 of 3 failed after 3 tries: chunk 1 failed (500)", "Part of the file didn't upload. You can try again."},
		{"chunk 0 failed (409)", "Part of the file didn't upload. You can try again."},
		{"finalize failed (409)", "Upload didn't finish saving. Please try again."},
		{"network error: dial tcp 127.0.0.1:1: connect: connection refused", "Connection problem. Check your internet and try again."},
		{"part 1 of 1 failed after 3 tries: network error: unexpected EOF", "Connection problem. Check your internet and try again."},
		{"weird", "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.raw))
		})
	}
}
