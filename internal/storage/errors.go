package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup for a key that has no stored value. Callers
// that treat absence as the implicit locked default should check for it
// with errors.Is rather than failing.
var ErrNotFound = errors.New("storage: not found")

// Error wraps a driver failure with the operation that produced it so the
// caller sees "save user record: ..." instead of a bare driver string.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapErr returns nil when err is nil, otherwise an *Error tagging err
// with op.
func WrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
