// Package errs defines the closed error taxonomy raised and propagated by
// every component of the core (spec.md §7).
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds the core raises and propagates.
type Kind int

const (
	// NotFound means the path or object does not exist.
	NotFound Kind = iota
	// AlreadyExists means the destination of a create/rename already exists.
	AlreadyExists
	// PermissionDenied means the backend refused the operation on
	// authorization grounds.
	PermissionDenied
	// UnsupportedOperation means the backend contract does not implement
	// the requested capability (e.g. write into an archive).
	UnsupportedOperation
	// NetworkFailure means a remote operation failed or timed out.
	NetworkFailure
	// ConflictingState means a concurrent external modification was
	// observed (e.g. ETag mismatch, directory became a file).
	ConflictingState
	// Cancelled is a normal non-error completion for a cooperative task
	// that observed a tripped cancellation token.
	Cancelled
	// IoFailure is the catch-all for local syscall failures.
	IoFailure
	// ConfigInvalid means a configuration value failed validation.
	ConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case PermissionDenied:
		return "PermissionDenied"
	case UnsupportedOperation:
		return "UnsupportedOperation"
	case NetworkFailure:
		return "NetworkFailure"
	case ConflictingState:
		return "ConflictingState"
	case Cancelled:
		return "Cancelled"
	case IoFailure:
		return "IoFailure"
	case ConfigInvalid:
		return "ConfigInvalid"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind, grounded on the
// teacher's (backend/sftp/sftp.go) use of github.com/pkg/errors for
// wrapping and cause inspection.
type Error struct {
	Kind  Kind
	Op    string // operation that failed, e.g. "stat", "iterdir"
	Path  string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
}

// Unwrap lets errors.Is / errors.As and pkg/errors.Cause see through Error.
func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, path string) *Error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// Wrap builds an *Error wrapping cause, matching the teacher's
// errors.Wrap(err, "...") idiom.
func Wrap(kind Kind, op, path string, cause error) *Error {
	if cause == nil {
		return New(kind, op, path)
	}
	return &Error{Kind: kind, Op: op, Path: path, cause: errors.Wrap(cause, op)}
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}

// KindOf returns the Kind of err, and ok=false if err is not (or does not
// wrap) an *Error.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae.Kind, true
		}
		err = errors.Unwrap(err)
	}
	return 0, false
}
