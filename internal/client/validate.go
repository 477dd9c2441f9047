package client

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// MaxFileMB is the largest file the client will send.
const MaxFileMB = 100

const maxFileBytes = MaxFileMB * 1024 * 1024

var (
	ErrNotCSV       = errors.New("Please choose a CSV file (e.g. data.csv).")
	ErrEmptyFile    = errors.New("This file is empty. Please choose a file with data.")
	ErrFileTooLarge = fmt.Errorf("File is too large. Maximum size is %d MB. Please choose a smaller file or split your data.", MaxFileMB)
)

// ValidateFile checks a file before any network activity. The file must
// have a .csv extension or a CSV content type, be non-empty, and be at
// most MaxFileMB. The returned error text is display copy.
func ValidateFile(f File) error {
	if !isCSV(f.Name, f.ContentType) {
		return ErrNotCSV
	}
	if f.Size == 0 {
		return ErrEmptyFile
	}
	if f.Size > maxFileBytes {
		return ErrFileTooLarge
	}
	return nil
}

func isCSV(name, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/csv" || mediaType == "application/csv"
}

// UserMessage turns a raw failure message from a Failed state into
// display copy. Only the category matters: start, transfer, save,
// connectivity, or generic.
func UserMessage(raw string) string {
	switch {
	case strings.Contains(raw, "init failed"):
		return "We couldn't start the upload. Please try again."
	case strings.Contains(raw, "chunk") && strings.Contains(raw, "failed"):
		return "Part of the file didn't upload. You can try again."
	case strings.Contains(raw, "finalize"):
		return "Upload didn't finish saving. Please try again."
	case isConnectivity(raw):
		return "Connection problem. Check your internet and try again."
	default:
		return "Something went wrong. Please try again."
	}
}

var connectivityHints = []string{
	"network",
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"EOF",
}

func isConnectivity(raw string) bool {
	for _, hint := range connectivityHints {
		if strings.Contains(raw, hint) {
			return true
		}
	}
	return false
}
