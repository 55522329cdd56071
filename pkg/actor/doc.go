/*
Package actor implements a single-threaded cooperative executor.

An Actor serializes all work submitted to it onto one goroutine: closures
submitted via Run or Call never execute concurrently with each other, and
always execute in submission order. This is the concurrency primitive the
partition supervisor is built on — every mutation of partition state happens
as a closure run on exactly one Actor, so the supervisor package itself needs
no locks.

# Usage

	a := actor.New(actor.Config{QueueSize: 64})
	defer a.Close()

	a.Run(func() { fmt.Println("fire and forget") })

	f := actor.Call(a, func() (int, error) { return 42, nil })
	v, err := f.Wait(ctx)

	stop := a.SchedulePeriodic(time.Second, func() { fmt.Println("tick") })
	defer stop()

A panic recovered from within a submitted closure is treated as fatal: every
outstanding and future Future resolves with ErrExecutorClosed (wrapping the
panic value), and the Actor stops accepting new work.
*/
package actor
