// Package fault defines the error kinds shared by the engine and target
// processes. Errors crossing the bridge are mapped back onto these sentinels
// so callers can test them with errors.Is on either side.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel error kinds.
var (
	// ErrInvalidState means an Address no longer resolves to a live object.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotSupported means an unknown property or an unimplemented operation.
	ErrNotSupported = errors.New("not supported")
	// ErrConnectivity means the target process is absent or the channel is gone.
	ErrConnectivity = errors.New("connectivity failure")
	// ErrMalformedDescriptor means a descriptor string could not be parsed.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	// ErrNotInitialized means no application instance was active at bind time.
	ErrNotInitialized = errors.New("not initialized")
)

// Error attaches the failing operation and detail to a sentinel kind.
type Error struct {
	Kind   error
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the kind and the wrapped cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of kind for op.
func New(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of kind for op caused by err.
func Wrap(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotSupported is shorthand for New(ErrNotSupported, ...).
func NotSupported(op, format string, args ...any) *Error {
	return New(ErrNotSupported, op, format, args...)
}

// InvalidState is shorthand for New(ErrInvalidState, ...).
func InvalidState(op, format string, args ...any) *Error {
	return New(ErrInvalidState, op, format, args...)
}

// KindOf returns the sentinel kind of err, or nil if err is not one of ours.
func KindOf(err error) error {
	for _, k := range []error{
		ErrInvalidState,
		ErrNotSupported,
		ErrConnectivity,
		ErrMalformedDescriptor,
		ErrNotInitialized,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
