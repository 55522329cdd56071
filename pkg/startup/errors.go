package startup

import (
	"errors"
	"strings"
)

// InvariantError marks a programming-error class failure: calling Startup
// twice, or Shutdown before Startup. Callers should treat it as
// unrecoverable by retry — the caller's usage of Process itself is wrong.
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string {
	return "startup: invariant violated: " + e.msg
}

var (
	// ErrAlreadyStarted is returned when Startup is called more than once on
	// the same Process.
	ErrAlreadyStarted error = &InvariantError{msg: "already started"}

	// ErrNotStarted is returned when Shutdown is called before Startup.
	ErrNotStarted error = &InvariantError{msg: "shutdown requested before startup"}
)

// ErrAbortedByShutdown completes a startup future when Shutdown is
// requested while steps are still being opened.
var ErrAbortedByShutdown = errors.New("startup: aborted by shutdown")

// ShutdownError aggregates every step-close error encountered during a
// shutdown that never short-circuits: every started step is given a chance
// to close regardless of earlier failures.
type ShutdownError struct {
	Errs []error
}

func (e *ShutdownError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "startup: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the aggregated errors to errors.Is/errors.As.
func (e *ShutdownError) Unwrap() []error {
	return e.Errs
}
