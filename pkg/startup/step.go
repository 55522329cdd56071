package startup

import "context"

// Step is one named unit of install/teardown threaded through a Process.
// C is the shared context type a chain of steps installs into and tears
// handles back out of (for example, a partition's role-install context
// carrying its log stream, KV handle, and directors).
//
// Close must be safe to call on a step whose Open failed or was never
// fully completed: Process pushes a step onto its LIFO stack before
// calling Open, precisely so a failed Open still gets torn down.
type Step[C any] struct {
	Name  string
	Open  func(ctx context.Context, c C) (C, error)
	Close func(ctx context.Context, c C) (C, error)
}
