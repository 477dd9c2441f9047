package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"bad request", fmt.Errorf("%w: missing x-session-id header", ErrBadRequest), "REQ001"},
		{"wrapped not found", fmt.Errorf("get session abc: %w", ErrNotFound), "SES001"},
		{"wrapped conflict", fmt.Errorf("chunk 3: %w", ErrConflict), "SES002"},
		{"incomplete", ErrIncomplete, "SES003"},
		{"failed session", ErrSessionFailed, "SES004"},
		{"invalid argument", fmt.Errorf("chunk index 9: %w", ErrInvalidArgument), "CHK001"},
		{"chunk too large", ErrChunkTooLarge, "CHK002"},
		{"invalid csv sentinel", fmt.Errorf("%w: read header", ErrInvalidCSV), "FILE002"},
		{"busy", ErrTooManyUploads, "UPL002"},
		{"cancelled", fmt.Errorf("assemble: %w", context.Canceled), "UPL004"},
		{"deadline", context.DeadlineExceeded, "UPL005"},
		{"raw csv parse error", errors.New(`parse error on line 3, column 4: bare " in non-quoted-field`), "FILE002"},
		{"disk full", errors.New("write /data/x: no space left on device"), "FILE006"},
		{"rate limit text", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive matching", errors.New("Context Deadline Exceeded"), "UPL005"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_SentinelBeatsPattern(t *testing.T) {
	// The text mentions a timeout but the wrapped sentinel decides.
	err := fmt.Errorf("lookup timeout: %w", ErrNotFound)
	if got := MapError(err).Code; got != "SES001" {
		t.Errorf("MapError() code = %q, want SES001", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrNotFound, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
