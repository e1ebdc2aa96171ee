package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("access denied")
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
)

// Error is a typed failure whose Message is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) error { return newError(ErrBadRequest, format, args...) }

func Unauthorized(format string, args ...any) error {
	return newError(ErrUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) error { return newError(ErrForbidden, format, args...) }

func NotFound(format string, args ...any) error { return newError(ErrNotFound, format, args...) }

func AlreadyExists(format string, args ...any) error { return newError(ErrConflict, format, args...) }

// StatusFor maps an error to its HTTP status and caller-facing message.
// Unknown errors become a generic 500.
func StatusFor(err error) (int, string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	default:
		return status, "Internal server error"
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return status, apiErr.Message
	}
	return status, http.StatusText(status)
}

// HandleError writes the error body for err. Unexpected errors are logged with
// full detail and never echoed back.
func HandleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Unhandled error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	ErrorResponse(w, r, status, msg)
}
