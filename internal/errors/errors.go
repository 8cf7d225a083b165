// Package errors implements the error taxonomy every component of the
// media kit runtime returns across its APIs. Library calls never panic
// or throw across a process boundary; they return one of these kinds.
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"
)

// Kind classifies an Error per the runtime's error handling design.
type Kind uint8

const (
	// Argument covers a bad node id or a wildcard where a concrete value
	// is required.
	Argument Kind = iota
	// NotFound covers an unknown node, buffer, or endpoint.
	NotFound
	// Permission covers a call made by a process that does not own the
	// target record.
	Permission
	// State covers an operation that conflicts with current state (a
	// connection already exists, a node not started).
	State
	// Resource covers out-of-memory or no-free-port conditions.
	Resource
	// Timeout covers a call that exceeded its deadline.
	Timeout
	// Transport covers a closed port or a process that is gone.
	Transport
	// Remote covers a wrapped error from another protocol (NFS, etc).
	Remote
	// InvariantViolated covers a refcount underflow or similar broken
	// invariant. It is logged as fatal but must never crash the process.
	InvariantViolated
)

func (k Kind) String() string {
	switch k {
	case Argument:
		return "argument"
	case NotFound:
		return "not-found"
	case Permission:
		return "permission"
	case State:
		return "state"
	case Resource:
		return "resource"
	case Timeout:
		return "timeout"
	case Transport:
		return "transport"
	case Remote:
		return "remote"
	case InvariantViolated:
		return "invariant-violated"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every package in this
// module. Op identifies the high level operation (e.g.
// "registry.Register", "nfs4.Reclaim"); Err is the wrapped cause, which
// may be nil.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so plain
// errors.Is(err, someKindSentinel) style checks work; KindOf is usually
// more convenient for callers that branch on kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf returns the Kind of err if it (or something in its chain) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsTimeout returns true if err is (or wraps) a Timeout-kind Error, a
// context deadline exceeded, or any error type that exposes Timeout()
// bool and returns true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, Timeout) {
		return true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}

// Constructors. Callers layer additional context with fmt.Errorf("...: %w", err)
// before passing it in as cause.
func NewArgument(op string, cause error) error   { return New(Argument, op, cause) }
func NewNotFound(op string, cause error) error   { return New(NotFound, op, cause) }
func NewPermission(op string, cause error) error { return New(Permission, op, cause) }
func NewState(op string, cause error) error      { return New(State, op, cause) }
func NewResource(op string, cause error) error   { return New(Resource, op, cause) }
func NewTransport(op string, cause error) error  { return New(Transport, op, cause) }
func NewRemote(op string, cause error) error     { return New(Remote, op, cause) }

// NewTimeout constructs a Timeout-kind error; d records how long the
// caller waited before giving up.
func NewTimeout(op string, d time.Duration, cause error) error {
	if cause == nil {
		cause = fmt.Errorf("deadline exceeded after %s", d)
	}
	return New(Timeout, op, cause)
}

// NewInvariantViolated builds an InvariantViolated error. Callers must
// log it (slog.Error) and continue; this package never panics on it.
func NewInvariantViolated(op string, cause error) error {
	return New(InvariantViolated, op, cause)
}
