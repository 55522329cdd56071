package actor

import (
	"context"
	"sync"
)

// Future is a one-shot, multi-reader completion handle for a value produced
// asynchronously by an Actor. The zero value is not usable; create one with
// NewFuture.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewFuture creates an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a Future that is already complete with value, nil error.
func Resolved[T any](value T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(value, nil)
	return f
}

// Failed returns a Future that is already complete with the zero value and err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	var zero T
	f.Complete(zero, err)
	return f
}

// Complete resolves the future exactly once; subsequent calls are no-ops.
// Intended for the producer that created the Future via NewFuture — callers
// that merely hold a *Future[T] to consume should use Wait/MustWait instead.
func (f *Future[T]) Complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// MustWait blocks until the future resolves, ignoring cancellation. Intended
// for use inside actor-bound continuations that already hold a background
// context with no meaningful deadline.
func (f *Future[T]) MustWait() (T, error) {
	<-f.done
	return f.value, f.err
}

// whenAllDone invokes fn once every future in futures has resolved. With
// zero futures fn runs synchronously on the caller's goroutine; otherwise
// it runs on a separate waiting goroutine. RunOnCompletion passes an fn
// that resubmits the user's closure to the actor.
func whenAllDone(futures []anyFuture, fn func()) {
	if len(futures) == 0 {
		fn()
		return
	}
	go func() {
		for _, f := range futures {
			<-f.Done()
		}
		fn()
	}()
}

// anyFuture is the type-erased subset of Future[T] needed by RunOnCompletion.
type anyFuture interface {
	Done() <-chan struct{}
}
