package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of an authorization failure.
type Kind string

const (
	Unauthenticated   Kind = "UNAUTHENTICATED"
	PermissionDenied  Kind = "PERMISSION_DENIED"
	NotFound          Kind = "NOT_FOUND"
	MissingParameter  Kind = "MISSING_PARAMETER"
	ResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	Internal          Kind = "INTERNAL"
)

// Error is an authorization failure with a stable kind and a message safe to
// show to callers. Wrapped causes are kept for logs but never serialized.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that records cause for logging. The cause is
// reachable via errors.Unwrap but excluded from the client-visible message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the kind of err if it is (or wraps) an *Error, and Internal
// otherwise. A nil err has no kind; callers must check for nil first.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return Internal
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// MessageOf returns the client-visible message for err. Errors that are not
// *Error collapse to a generic message so internals never leak.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "internal error"
}

// HTTPStatus maps a kind to its transport status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case MissingParameter:
		return http.StatusBadRequest
	case ResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
