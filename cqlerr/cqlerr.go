// Package cqlerr defines the error taxonomy every CQLite component
// raises, so callers can distinguish failure classes without string
// matching. Each *Error carries a Kind plus enough context (file,
// component, byte offset) to locate the failure.
package cqlerr

import "fmt"

// Kind classifies a failure into one of the categories spec.md §7 names.
type Kind int

const (
	// Io is an OS-level read failure; callers may retry.
	Io Kind = iota
	// UnsupportedFormat means a magic/version this engine doesn't understand.
	UnsupportedFormat
	// UnknownFlag means a reserved flag bit was set.
	UnknownFlag
	// Truncated means a declared length exceeds available bytes.
	Truncated
	// Corrupt means a CRC mismatch, invalid VInt, invalid UTF-8, or
	// out-of-order collection entries under strict ordering.
	Corrupt
	// SchemaMismatch means the serialization header disagrees with the
	// caller-supplied schema.
	SchemaMismatch
	// TypeMismatch means a runtime value does not fit its declared type.
	TypeMismatch
	// Unsupported means the SELECT statement used a feature outside the
	// accepted grammar subset.
	Unsupported
	// ResourceExceeded means an in-memory buffer or cache limit was hit.
	ResourceExceeded
	// Cancelled means cooperative cancellation or a deadline fired.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "Io"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case UnknownFlag:
		return "UnknownFlag"
	case Truncated:
		return "Truncated"
	case Corrupt:
		return "Corrupt"
	case SchemaMismatch:
		return "SchemaMismatch"
	case TypeMismatch:
		return "TypeMismatch"
	case Unsupported:
		return "Unsupported"
	case ResourceExceeded:
		return "ResourceExceeded"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised across the engine.
type Error struct {
	Kind      Kind
	File      string // e.g. "Data.db", "" when not file-scoped
	Component string // e.g. "Statistics", "Filter", "" when not applicable
	Offset    int64  // byte offset, -1 when not applicable
	Msg       string
	Cause     error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("cqlite: %s", e.Kind)
	if e.Component != "" {
		s += " in " + e.Component
	}
	if e.File != "" {
		s += " (" + e.File + ")"
	}
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, cqlerr.ErrCorrupt) style matching against a
// Kind wrapped in a sentinel-shaped comparison value produced by Sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.File != "" || other.Component != "" || other.Msg != "" {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel returns a bare *Error carrying only a Kind, suitable as the
// target of errors.Is.
func Sentinel(k Kind) *Error { return &Error{Kind: k, Offset: -1} }

// New builds a *Error with the given kind and message, no cause.
func New(k Kind, component, format string, args ...any) *Error {
	return &Error{Kind: k, Component: component, Offset: -1, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Error with the given kind and message, wrapping cause.
func Wrap(k Kind, component string, cause error, format string, args ...any) *Error {
	return &Error{Kind: k, Component: component, Offset: -1, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// WithOffset returns a copy of e with Offset and File set, for parsers
// that only learn the byte position after constructing the base error.
func (e *Error) WithOffset(file string, offset int64) *Error {
	c := *e
	c.File = file
	c.Offset = offset
	return &c
}

var (
	// ErrIo is the sentinel for Kind Io.
	ErrIo = Sentinel(Io)
	// ErrUnsupportedFormat is the sentinel for Kind UnsupportedFormat.
	ErrUnsupportedFormat = Sentinel(UnsupportedFormat)
	// ErrUnknownFlag is the sentinel for Kind UnknownFlag.
	ErrUnknownFlag = Sentinel(UnknownFlag)
	// ErrTruncated is the sentinel for Kind Truncated.
	ErrTruncated = Sentinel(Truncated)
	// ErrCorrupt is the sentinel for Kind Corrupt.
	ErrCorrupt = Sentinel(Corrupt)
	// ErrSchemaMismatch is the sentinel for Kind SchemaMismatch.
	ErrSchemaMismatch = Sentinel(SchemaMismatch)
	// ErrTypeMismatch is the sentinel for Kind TypeMismatch.
	ErrTypeMismatch = Sentinel(TypeMismatch)
	// ErrUnsupported is the sentinel for Kind Unsupported.
	ErrUnsupported = Sentinel(Unsupported)
	// ErrResourceExceeded is the sentinel for Kind ResourceExceeded.
	ErrResourceExceeded = Sentinel(ResourceExceeded)
	// ErrCancelled is the sentinel for Kind Cancelled.
	ErrCancelled = Sentinel(Cancelled)
)
