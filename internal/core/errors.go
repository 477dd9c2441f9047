package core

import "errors"

// Sentinel errors returned by the upload pipeline. Callers match them
// with errors.Is; the HTTP layer maps each to a status code.
var (
	// ErrNotFound means the session id is unknown, expired, or (for
	// preview reads) not finalized yet.
	ErrNotFound = errors.New("upload session not found")

	// ErrConflict means the request disagrees with recorded session
	// state, such as a different chunk total or a write to a session
	// that is no longer open.
	ErrConflict = errors.New("upload session conflict")

	// ErrBadRequest means a request field or header is missing or
	// malformed.
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidArgument means a request field is out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIncomplete means finalize was called before every chunk arrived.
	ErrIncomplete = errors.New("upload incomplete")

	// ErrSessionFailed means an earlier finalize failed; the session is
	// terminal and the client must start a new upload.
	ErrSessionFailed = errors.New("upload session failed")

	// ErrInvalidCSV means the assembled file could not be parsed.
	ErrInvalidCSV = errors.New("invalid csv")

	// ErrChunkTooLarge means a chunk body exceeded the configured limit.
	ErrChunkTooLarge = errors.New("chunk too large")
)
