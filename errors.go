package cryptovault

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Structural errors — the normal POSIX-ish error surface.
var (
	ErrNotFound         = errors.New("cryptovault: entry not found")
	ErrAlreadyExists    = errors.New("cryptovault: entry already exists")
	ErrNotEmpty         = errors.New("cryptovault: directory not empty")
	ErrIsDirectory      = errors.New("cryptovault: is a directory")
	ErrNotDirectory     = errors.New("cryptovault: not a directory")
	ErrInvalidArgument  = errors.New("cryptovault: invalid argument")
	ErrPermissionDenied = errors.New("cryptovault: permission denied")
	ErrNotSupported     = errors.New("cryptovault: not supported")
	ErrInvalidPath      = errors.New("cryptovault: invalid path component")
	ErrDirIDMissing     = errors.New("cryptovault: directory id has no storage entry")
	ErrParentMissing    = errors.New("cryptovault: parent directory does not exist")
	ErrDstExists        = errors.New("cryptovault: destination already exists")
)

// Cryptographic errors — never recovered locally, always surfaced.
var (
	ErrAuthFailed         = errors.New("cryptovault: authentication failed — data may be corrupted or tampered")
	ErrShortRead          = errors.New("cryptovault: truncated ciphertext")
	ErrMalformed          = errors.New("cryptovault: malformed framing")
	ErrContentKeyUnwrap   = errors.New("cryptovault: content key unwrap failed")
	ErrInvalidKey         = errors.New("cryptovault: invalid key material")
	ErrUnsupportedVersion = errors.New("cryptovault: unsupported vault format version")
	ErrUnsupportedCipher  = errors.New("cryptovault: unsupported cipher combo")
	ErrKeyAccess          = errors.New("cryptovault: locked key memory could not be accessed")
)

// ValidationError represents a configuration or parameter validation error.
type ValidationError struct {
	Field   string
	Value   any
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError creates a new validation error.
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// CryptoError wraps a cryptographic failure with the chunk/header context
// that produced it. Operation is one of "decrypt-header", "decrypt-chunk",
// "encrypt-header", "encrypt-chunk".
type CryptoError struct {
	Operation string
	Path      string
	ChunkIdx  int64 // -1 when the error is header-level
	Err       error
}

func (e *CryptoError) Error() string {
	if e.ChunkIdx >= 0 {
		return fmt.Sprintf("%s: %s (chunk %d): %v", e.Operation, e.Path, e.ChunkIdx, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Operation, e.Path, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// NewCryptoError creates a new chunk/header-scoped crypto error.
func NewCryptoError(operation, path string, chunkIdx int64, err error) error {
	return &CryptoError{Operation: operation, Path: path, ChunkIdx: chunkIdx, Err: err}
}

// PathError associates a structural or I/O failure with the logical vault
// path that triggered it, mirroring the shape of *os.PathError.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError creates a new path-scoped error.
func NewPathError(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsCryptoError reports whether err is (or wraps) a *CryptoError.
func IsCryptoError(err error) bool {
	var ce *CryptoError
	return errors.As(err, &ce)
}

// IsAuthFailure reports whether err is, wraps, or was produced by an
// authentication/MAC failure. Crypto errors are never retried; callers
// use this to distinguish "corrupt or tampered" from ordinary I/O failure.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// ToErrno maps a cryptovault error to the POSIX errno a mount backend
// (FUSE/NFS/WebDAV — all out of this package's scope) should report to the
// kernel. AuthFailed maps to EIO; backends are expected to log
// it, since it signals tampering or corruption rather than an ordinary
// missing-file condition.
func ToErrno(err error) unix.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrParentMissing), errors.Is(err, ErrDirIDMissing):
		return unix.ENOENT
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDstExists):
		return unix.EEXIST
	case errors.Is(err, ErrNotEmpty):
		return unix.ENOTEMPTY
	case errors.Is(err, ErrIsDirectory):
		return unix.EISDIR
	case errors.Is(err, ErrNotDirectory):
		return unix.ENOTDIR
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidPath):
		return unix.EINVAL
	case errors.Is(err, ErrPermissionDenied):
		return unix.EACCES
	case errors.Is(err, ErrNotSupported):
		return unix.ENOTSUP
	case IsAuthFailure(err), errors.Is(err, ErrMalformed), errors.Is(err, ErrShortRead):
		return unix.EIO
	default:
		return unix.EIO
	}
}
