package fatvfs

import "fmt"

// FSError is the error interface returned by every exported operation in
// this package. It wraps one of the sentinel kinds below, optionally with
// extra context attached via WithMessage.
type FSError interface {
	error
	// Kind returns the sentinel this error was derived from, for use with
	// errors.Is.
	Kind() FSError
	// WithMessage returns a copy of the error with additional context
	// appended to its message.
	WithMessage(msg string) FSError
	Unwrap() error
}

// fsError is the concrete FSError implementation. Sentinel values below are
// plain *fsError with no wrapped cause; WithMessage and wrapError return
// derived copies that still compare equal to the sentinel via Kind/errors.Is.
type fsError struct {
	kind    *fsError
	text    string
	message string
	cause   error
}

func (e *fsError) Error() string {
	switch {
	case e.message != "" && e.cause != nil:
		return fmt.Sprintf("%s: %s: %s", e.text, e.message, e.cause)
	case e.message != "":
		return fmt.Sprintf("%s: %s", e.text, e.message)
	case e.cause != nil:
		return fmt.Sprintf("%s: %s", e.text, e.cause)
	default:
		return e.text
	}
}

func (e *fsError) Kind() FSError {
	if e.kind != nil {
		return e.kind
	}
	return e
}

func (e *fsError) Unwrap() error {
	return e.cause
}

func (e *fsError) WithMessage(msg string) FSError {
	return &fsError{kind: e.Kind().(*fsError), text: e.text, message: msg}
}

// wrapError attaches cause to the sentinel err as its Unwrap() target,
// without discarding the original I/O or corruption error it came from.
func wrapError(err *fsError, cause error) FSError {
	return &fsError{kind: err.Kind().(*fsError), text: err.text, cause: cause}
}

func newSentinel(text string) *fsError {
	return &fsError{text: text}
}

// Sentinel error kinds, §7.
var (
	ErrIO               = newSentinel("i/o error")
	ErrCorruption       = newSentinel("on-disk corruption")
	ErrBogusOffset      = newSentinel("bogus cluster offset")
	ErrUnexpectedEOC    = newSentinel("unexpected end-of-chain marker")
	ErrLengthMismatch   = newSentinel("length mismatch")
	ErrNotFound         = newSentinel("not found")
	ErrAlreadyExists    = newSentinel("already exists")
	ErrIsADirectory     = newSentinel("is a directory")
	ErrIsAFile          = newSentinel("is a file")
	ErrNotADirectory    = newSentinel("not a directory")
	ErrNoMemory         = newSentinel("out of memory")
	ErrDiskFull         = newSentinel("disk full")
	ErrFileTooBig       = newSentinel("file too big")
	ErrFilenameTooLong  = newSentinel("filename too long")
	ErrWriteProtect     = newSentinel("volume is read-only")
	ErrAccessDenied     = newSentinel("access denied")
	ErrInvalidName      = newSentinel("invalid name")
	ErrTooManySymlinks  = newSentinel("too many symlinks")
	ErrNotSupported     = newSentinel("not supported")
	ErrUnknownFormat    = newSentinel("unknown filesystem format")
	ErrBogusFormat      = newSentinel("bogus filesystem geometry")
	ErrClosed           = newSentinel("object closed")
	ErrInvalidParameter = newSentinel("invalid parameter")
)

// Is implements the errors.Is protocol so that e.g.
// errors.Is(err, fatvfs.ErrNotFound) works whether err is the sentinel
// itself or a derived *fsError from WithMessage/wrapError.
func (e *fsError) Is(target error) bool {
	t, ok := target.(*fsError)
	if !ok {
		return false
	}
	return e.Kind() == t.Kind()
}
