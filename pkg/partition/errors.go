package partition

import "errors"

// UnrecoverableError marks a transition or listener failure that the
// supervisor must not attempt to recover from on this node: it always
// routes through the unrecoverable-failure path (drive to inactive,
// request consensus.GoInactive, mark health Dead permanently) rather than
// the ordinary recoverable retry-via-next-role-change path.
type UnrecoverableError struct {
	Cause error
}

func (e *UnrecoverableError) Error() string {
	return "unrecoverable: " + e.Cause.Error()
}

func (e *UnrecoverableError) Unwrap() error {
	return e.Cause
}

// Unrecoverable wraps cause as an UnrecoverableError.
func Unrecoverable(cause error) error {
	return &UnrecoverableError{Cause: cause}
}

// IsUnrecoverable reports whether err is, or wraps, an UnrecoverableError.
func IsUnrecoverable(err error) bool {
	var u *UnrecoverableError
	return errors.As(err, &u)
}
