package wikifs

import (
	"errors"
	"os"
	"syscall"

	"wikifs/internal/logging"
	"wikifs/internal/wikierr"
)

var errLogger = logging.GetLogger().WithPrefix("error")

// Common operation names for consistent logging and error reporting
const (
	OpLookup   = "lookup"
	OpReadDir  = "readdir"
	OpGetattr  = "getattr"
	OpReadlink = "readlink"
	OpOpen     = "open"
	OpRead     = "read"
	OpWrite    = "write"
	OpTruncate = "truncate"
)

// Errno converts an error from Operations into the errno a FUSE binding
// should answer with.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	switch wikierr.KindOf(err) {
	case wikierr.KindDocumentNotFound, wikierr.KindMissingField,
		wikierr.KindUnexpectedStatus, wikierr.KindUnresolvedPath:
		errLogger.Trace("Mapping to ENOENT: %v", err)
		return syscall.ENOENT
	case wikierr.KindReadOnly:
		return syscall.EROFS
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}

// ToFuseError is Errno as an error value, nil when err is nil.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}
	return Errno(err)
}
