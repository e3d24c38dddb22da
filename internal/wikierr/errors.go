// Package wikierr defines the error kinds shared by the wiki backends,
// the path grammar and the filesystem bindings.
package wikierr

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound indicates the addressed page does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrMissingField indicates the page exists but lacks the requested
	// content, title, object, property or attachment.
	ErrMissingField = errors.New("missing field")

	// ErrUnexpectedStatus indicates the remote answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrUnresolvedPath indicates a path matches no grammar shape.
	ErrUnresolvedPath = errors.New("unresolved path")

	// ErrSourceConflict indicates several input backends disagree and
	// nothing picked a winner.
	ErrSourceConflict = errors.New("sources disagree")

	// ErrReadOnly indicates a write to a resource that cannot be written.
	ErrReadOnly = errors.New("resource is read-only")
)

// Kind classifies an error for callers that only care about its category.
type Kind int

const (
	KindUnknown Kind = iota
	KindDocumentNotFound
	KindMissingField
	KindUnexpectedStatus
	KindUnresolvedPath
	KindSourceConflict
	KindReadOnly
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindDocumentNotFound: "document_not_found",
	KindMissingField:     "missing_field",
	KindUnexpectedStatus: "unexpected_status",
	KindUnresolvedPath:   "unresolved_path",
	KindSourceConflict:   "source_conflict",
	KindReadOnly:         "read_only",
}

func (k Kind) String() string {
	return kindNames[k]
}

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrDocumentNotFound):
		return KindDocumentNotFound
	case errors.Is(err, ErrMissingField):
		return KindMissingField
	case errors.Is(err, ErrUnexpectedStatus):
		return KindUnexpectedStatus
	case errors.Is(err, ErrUnresolvedPath):
		return KindUnresolvedPath
	case errors.Is(err, ErrSourceConflict):
		return KindSourceConflict
	case errors.Is(err, ErrReadOnly):
		return KindReadOnly
	default:
		return KindUnknown
	}
}

// Missing wraps ErrMissingField with a description of what is missing.
func Missing(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMissingField, fmt.Sprintf(format, args...))
}

// Unresolved wraps ErrUnresolvedPath with the offending path.
func Unresolved(path string) error {
	return fmt.Errorf("%w: %q", ErrUnresolvedPath, path)
}

// StatusError is returned when the remote answers with a non-2xx status.
// Body is only filled in when the client runs in debug mode.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is makes errors.Is(err, ErrUnexpectedStatus) hold for every StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Error wraps an error with the operation and path that produced it.
type Error struct {
	Op   string // Operation that failed (e.g., "getattr", "write")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil when err is nil, otherwise an *Error.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}
