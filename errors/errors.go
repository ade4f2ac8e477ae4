// Package errors implements an error type that defines standard
// interpretable error codes for common storage-engine error conditions.
// Errors also carry an interpretable severity, so that error-producing
// operations can be retried in consistent ways. Errors returned by this
// package can be chained: thus attributing one error to another.
package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ":\n\t"

// Kind defines the type of error. Kinds are semantically meaningful, and
// may be interpreted by the receiver of an error (e.g. to determine
// whether an operation should be retried).
type Kind int

const (
	// Other indicates an unknown error.
	Other Kind = iota
	// Canceled indicates a context cancellation.
	Canceled
	// Timeout indicates an operation timed out.
	Timeout
	// NotExist indicates a nonexistent resource (directory file, BlockFile,
	// volume path).
	NotExist
	// NotAllowed indicates a permission failure.
	NotAllowed
	// NotSupported indicates an unsupported operation or codec name.
	NotSupported
	// Exists indicates that a resource already exists.
	Exists
	// Integrity indicates a corrupted on-disk structure (bad CRC, bad magic,
	// truncated file).
	Integrity
	// Unavailable indicates that a resource was unavailable.
	Unavailable
	// Invalid indicates that the caller supplied invalid parameters (bad
	// coordinate, mismatched shape or dtype).
	Invalid
	// Precondition indicates that a precondition was not met (e.g. a
	// duplicate write to an already-committed coordinate).
	Precondition

	maxKind
)

var kinds = map[Kind]string{
	Other:        "unknown error",
	Canceled:     "operation was canceled",
	Timeout:      "operation timed out",
	NotExist:     "resource does not exist",
	NotAllowed:   "access denied",
	NotSupported: "operation not supported",
	Exists:       "resource already exists",
	Integrity:    "integrity error",
	Unavailable:  "resource unavailable",
	Invalid:      "invalid argument",
	Precondition: "precondition failed",
}

// kindStdErrs maps some Kinds to the standard library's equivalent.
var kindStdErrs = map[Kind]error{
	Canceled: context.Canceled,
	NotExist: os.ErrNotExist,
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// Severity defines an Error's severity. An Error's severity determines
// whether an error-producing operation may be retried or not.
type Severity int

const (
	// Retriable indicates that the failing operation can be safely
	// retried, regardless of application context.
	Retriable Severity = -2
	// Temporary indicates that the underlying error condition is likely
	// temporary, and can possibly be retried in an application-specific
	// context.
	Temporary Severity = -1
	// Unknown indicates the error's severity is unknown. This is the
	// default severity level.
	Unknown Severity = 0
	// Fatal indicates that the underlying error condition is
	// unrecoverable; retrying is unlikely to help.
	Fatal Severity = 1
)

var severities = map[Severity]string{
	Retriable: "retriable",
	Temporary: "temporary",
	Unknown:   "unknown",
	Fatal:     "fatal",
}

// String returns a human-readable explanation of the error severity s.
func (s Severity) String() string {
	return severities[s]
}

// Error is the standard error type, carrying a kind (error code), message
// (error message), and potentially an underlying error. Errors should be
// constructed with E, which interprets arguments according to a set of
// rules.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Severity is an optional severity.
	Severity Severity
	// Message is an optional error message associated with this error.
	Message string
	// Err is the error that caused this error, if any. Errors can form
	// chains through Err: the full chain is printed by Error().
	Err error
}

// E constructs a new error from the provided arguments. Arguments are
// interpreted according to their types:
//
//   - Kind: sets the Error's kind
//   - Severity: sets the Error's severity
//   - string: sets the Error's message; multiple strings are joined with
//     a single space
//   - *Error: copies the error and sets the error's cause
//   - error: sets the Error's cause
//
// If a kind is not provided but an underlying error is, E attempts to
// infer one: context.Canceled becomes Canceled, an error satisfying
// interface{ Temporary() bool } raises the severity to Temporary.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Severity:
			e.Severity = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			return &Error{
				Kind:    Invalid,
				Message: fmt.Sprintf("unknown type %T, value %v in error call from %s:%d", arg, arg, file, line),
			}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if prev.Severity == e.Severity || e.Severity == Unknown {
			e.Severity = prev.Severity
			prev.Severity = Unknown
		}
	default:
		if t, ok := e.Err.(interface{ Temporary() bool }); ok && t.Temporary() && e.Severity == Unknown {
			e.Severity = Temporary
		}
		if e.Kind == Other {
			for kind := Kind(0); kind < maxKind; kind++ {
				if std := kindStdErrs[kind]; std != nil && errors.Is(e.Err, std) {
					e.Kind = kind
					break
				}
			}
		}
		if e.Kind == Other {
			if t, ok := e.Err.(interface{ Timeout() bool }); ok && t.Timeout() {
				e.Kind = Timeout
			}
		}
	}
	return e
}

// Recover recovers any error into an *Error. If err is already an *Error,
// it is returned unchanged.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Error returns a human readable string describing this error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Severity != Unknown {
		pad(b, " ")
		b.WriteByte('(')
		b.WriteString(e.Severity.String())
		b.WriteByte(')')
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

// Timeout tells whether this error is a timeout error.
func (e *Error) Timeout() bool { return e.Kind == Timeout }

// Temporary tells whether this error is temporary.
func (e *Error) Temporary() bool { return e.Severity <= Temporary }

// Unwrap returns e's cause, if any, letting the standard library's
// errors.Unwrap, errors.Is, and errors.As work with *Error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the standard library error that e's
// Kind maps to (see kindStdErrs), so that the standard library's
// errors.Is matches, for example, a Canceled-kind *Error against
// context.Canceled even when its cause is some other error.
func (e *Error) Is(target error) bool {
	std := kindStdErrs[e.Kind]
	return std != nil && std == target
}

// Is tells whether an error has the specified kind, except for the
// indeterminate kind Other, in which case the chain is traversed until a
// non-Other error is encountered.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		if e2, ok := e.Err.(*Error); ok {
			return is(kind, e2)
		}
	}
	return false
}

// IsTemporary tells whether the provided error is likely temporary.
func IsTemporary(err error) bool {
	return Recover(err).Temporary()
}

// New is synonymous with the standard library's errors.New, provided here
// so that callers need import only this one errors package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}
