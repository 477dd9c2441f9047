// Error codes reference
//
// User-facing error messages carry a code that support staff can look up.
// Codes are grouped by category:
//
// # Request errors (REQ001)
//
//	REQ001 - Bad request: a required field or header is missing or malformed
//
// # Session errors (SES001-SES099)
//
//	SES001 - Session not found: the upload id is unknown or has expired
//	SES002 - Session conflict: the request disagrees with the session state
//	SES003 - Upload incomplete: finalize was requested before all parts arrived
//	SES004 - Session failed: an earlier finalize failed
//
// # Chunk errors (CHK001-CHK099)
//
//	CHK001 - Invalid chunk: chunk index or total is out of range
//	CHK002 - Chunk too large: a single part exceeded the size limit
//
// # File errors (FILE001-FILE099)
//
//	FILE002 - Invalid CSV: the assembled file is not valid CSV
//	FILE003 - Encoding error: the file contains invalid characters
//	FILE006 - Storage error: the server could not write the file
//
// # Upload errors (UPL001-UPL099)
//
//	UPL002 - System busy: too many files are being processed
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Rate limiting (RATE001)
//
// # Default (ERR000)
//
// Sentinel errors are matched first with errors.Is. Errors that carry no
// sentinel fall back to case-insensitive substring patterns; the first
// match wins, so specific patterns precede general ones.

package core

import (
	"context"
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var (
	msgBadRequest = UserMessage{
		Message: "The request was missing required information",
		Action:  "Check the request and try again",
		Code:    "REQ001",
	}
	msgNotFound = UserMessage{
		Message: "Upload session not found",
		Action:  "The upload may have expired. Please start a new upload",
		Code:    "SES001",
	}
	msgConflict = UserMessage{
		Message: "This upload no longer accepts that request",
		Action:  "Start a new upload of the file",
		Code:    "SES002",
	}
	msgIncomplete = UserMessage{
		Message: "Not all parts of the file have arrived yet",
		Action:  "Finish sending every part, then try again",
		Code:    "SES003",
	}
	msgFailed = UserMessage{
		Message: "Processing this upload failed",
		Action:  "Please upload the file again",
		Code:    "SES004",
	}
	msgInvalidChunk = UserMessage{
		Message: "A file part was numbered incorrectly",
		Action:  "Restart the upload",
		Code:    "CHK001",
	}
	msgChunkTooLarge = UserMessage{
		Message: "A file part was larger than the server accepts",
		Action:  "Use a smaller chunk size",
		Code:    "CHK002",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with matching quotes",
		Code:    "FILE002",
	}
	msgBusy = UserMessage{
		Message: "Too many files are being processed",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
)

// sentinelMessages is consulted before the pattern table.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrBadRequest, msgBadRequest},
	{ErrNotFound, msgNotFound},
	{ErrIncomplete, msgIncomplete},
	{ErrSessionFailed, msgFailed},
	{ErrConflict, msgConflict},
	{ErrChunkTooLarge, msgChunkTooLarge},
	{ErrInvalidArgument, msgInvalidChunk},
	{ErrInvalidCSV, msgInvalidCSV},
	{ErrTooManyUploads, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"parse error on line", msgInvalidCSV},
	{"bare \" in non-quoted-field", msgInvalidCSV},
	{"extraneous or missing \" in quoted-field", msgInvalidCSV},
	{"invalid utf-8", UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save file as UTF-8 encoding",
		Code:    "FILE003",
	}},
	{"no space left on device", UserMessage{
		Message: "The server could not store the file",
		Action:  "Please try again later",
		Code:    "FILE006",
	}},
	{"too many open files", UserMessage{
		Message: "The server could not store the file",
		Action:  "Please try again later",
		Code:    "FILE006",
	}},
	{"too many uploads", msgBusy},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimeout},
	{"timeout", msgTimeout},
}

// defaultMessage is returned when no sentinel or pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error into a user-friendly message. A nil error
// yields the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// IsUserFacing reports whether err maps to a specific message rather
// than the generic fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
