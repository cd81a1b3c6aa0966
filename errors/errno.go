// Package errors defines the domain error kinds raised by this driver.
//
// Errors are plain string constants rather than wrapped syscall.Errno values:
// this driver never sits on top of a POSIX file descriptor, so there is no
// underlying errno to preserve.
package errors

import "fmt"

// DiskoError is a constant error kind that can be enriched with a message or
// wrap an underlying cause without losing its identity.
type DiskoError string

const ErrNotInitialised = DiskoError("driver used before Init succeeded")
const ErrDiskFull = DiskoError("no space left on device")
const ErrRootDirFull = DiskoError("root directory has no free entry")
const ErrMalformedOnDisk = DiskoError("on-disk structure is corrupted or unreadable")
const ErrNotFound = DiskoError("no such file or directory")
const ErrExists = DiskoError("file exists")
const ErrInvalidArgument = DiskoError("invalid argument")
const ErrArgumentOutOfRange = DiskoError("numerical argument out of domain")
const ErrIOFailed = DiskoError("input/output error")
const ErrFileSystemCorrupted = DiskoError("structure needs cleaning")
const ErrNoSpaceOnDevice = DiskoError("no space left on device")
const ErrReadOnlyFileSystem = DiskoError("read-only file system")
const ErrNotSupported = DiskoError("operation not supported")
const ErrNameTooLong = DiskoError("file name too long")
const ErrIsADirectory = DiskoError("is a directory")
const ErrNotADirectory = DiskoError("not a directory")

func (e DiskoError) Error() string {
	return string(e)
}

// WithMessage attaches additional context to the error while preserving its
// identity: errors.Is(result, e) still holds.
func (e DiskoError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", string(e), message),
		originalError: e,
	}
}

// WrapError wraps err, reporting both this error's meaning and err's detail.
func (e DiskoError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", string(e), err.Error()),
		originalError: e,
	}
}

// Is lets errors.Is(wrapped, ErrXxx) succeed after WithMessage/WrapError.
func (e DiskoError) Is(target error) bool {
	other, ok := target.(DiskoError)
	return ok && other == e
}
