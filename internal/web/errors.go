package web

// errors.go turns pipeline errors into HTTP responses.
//
// Every error is logged with its technical detail and request id, then
// answered with a JSON envelope carrying the user-facing message from
// core.MapError and a status derived from the wrapped sentinel.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/csvpreview/internal/core"
	"github.com/JonMunkholm/csvpreview/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrBadRequest), errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict),
		errors.Is(err, core.ErrIncomplete),
		errors.Is(err, core.ErrSessionFailed):
		return http.StatusConflict
	case errors.Is(err, core.ErrChunkTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidCSV):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the JSON error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)
	if status == http.StatusRequestEntityTooLarge && userMsg.Code != "CHK002" {
		userMsg = core.MapError(core.ErrChunkTooLarge)
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		attrs = append(attrs, "mapped", core.IsUserFacing(err))
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	// Server-side detail such as file paths stays in the log.
	errText := err.Error()
	if status >= http.StatusInternalServerError {
		errText = userMsg.Message
	}

	if status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   errText,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}
