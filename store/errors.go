package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every store variant.
var (
	// ErrNil reports that a key (or a sorted-set member) is absent or expired.
	ErrNil = errors.New("store: nil")

	// ErrUnavailable reports that the backing store could not be reached or
	// answered with a transport-level failure. Backends wrap the cause.
	ErrUnavailable = errors.New("store: unavailable")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store: closed")

	// ErrWrongType reports an operation against a key holding another kind of value.
	ErrWrongType = errors.New("store: operation against a key holding the wrong kind of value")

	// ErrNotInteger reports an increment of a value that is not an integer.
	ErrNotInteger = errors.New("store: value is not an integer")
)

// Unavailable wraps cause as an ErrUnavailable error.
func Unavailable(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, cause)
}

// IsNil reports whether err means "absent".
func IsNil(err error) bool {
	return errors.Is(err, ErrNil)
}

// IsUnavailable reports whether err is a transport-level failure rather than
// a definite answer from the store.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrClosed)
}
