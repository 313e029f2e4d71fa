package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Wrap one of these in an Error so callers can classify
// failures with errors.Is without parsing messages.
var (
	ErrNotConnected      = errors.New("not connected")
	ErrRefreshFailed     = errors.New("refresh failed")
	ErrImportFailed      = errors.New("import failed")
	ErrFetchFailed       = errors.New("fetch failed")
	ErrStorageFailed     = errors.New("storage failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
)

// Error carries a kind for classification plus a human-readable message.
// Body optionally holds the upstream response body for diagnostics.
type Error struct {
	Kind    error
	Message string
	Body    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New constructs an Error of the given kind
func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error whose message comes from an underlying error
func Wrap(kind error, err error) *Error {
	if err == nil {
		return &Error{Kind: kind}
	}
	return &Error{Kind: kind, Message: err.Error()}
}

// StatusCode maps an error to the HTTP status it should produce
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrImportFailed), errors.Is(err, ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
