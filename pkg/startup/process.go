package startup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/partitionkit/pkg/actor"
	"github.com/cuemby/partitionkit/pkg/log"
	"github.com/cuemby/partitionkit/pkg/metrics"
)

// Process drives a frozen, ordered list of Steps through a one-shot
// startup followed by an idempotent shutdown. Every step open/close runs
// serially on a private actor owned by the Process, so a Shutdown
// requested mid-startup never races the in-flight step: it is simply
// queued behind it and observes exactly the steps that had already been
// pushed onto the LIFO stack by the time the in-flight Open returned.
type Process[C any] struct {
	runner  *actor.Actor
	steps   []Step[C]
	timeout time.Duration
	logger  zerolog.Logger

	mu                sync.Mutex
	startupCalled     bool
	shutdownRequested bool
	started           []Step[C]
	startupFuture     *actor.Future[C]
	shutdownFuture    *actor.Future[C]
}

// Option configures a Process at construction time.
type Option[C any] func(*Process[C])

// WithStepTimeout bounds every individual step's Open/Close call with a
// context.WithTimeout derivation of the context passed to Startup/Shutdown.
// The zero value (the default) applies no timeout.
func WithStepTimeout[C any](d time.Duration) Option[C] {
	return func(p *Process[C]) { p.timeout = d }
}

// WithLogger overrides the component logger used for step open/close
// messages.
func WithLogger[C any](logger zerolog.Logger) Option[C] {
	return func(p *Process[C]) { p.logger = logger }
}

// New builds a Process over steps, frozen in the given order for Startup
// and torn down in strict reverse order by Shutdown.
func New[C any](steps []Step[C], opts ...Option[C]) *Process[C] {
	p := &Process[C]{
		runner: actor.New(actor.Config{}),
		steps:  append([]Step[C](nil), steps...),
		logger: log.WithComponent("startup"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Startup runs at most once; subsequent calls resolve immediately with
// ErrAlreadyStarted.
func (p *Process[C]) Startup(ctx context.Context, c C) *actor.Future[C] {
	p.mu.Lock()
	if p.startupCalled {
		p.mu.Unlock()
		return actor.Failed[C](ErrAlreadyStarted)
	}
	p.startupCalled = true
	p.startupFuture = actor.NewFuture[C]()
	future := p.startupFuture
	p.mu.Unlock()

	p.runner.Run(func() { p.runStartup(ctx, c) })
	return future
}

// Shutdown fails with ErrNotStarted if Startup was never called. A second
// and every subsequent call returns the same future as the first.
func (p *Process[C]) Shutdown(ctx context.Context, c C) *actor.Future[C] {
	p.mu.Lock()
	if !p.startupCalled {
		p.mu.Unlock()
		return actor.Failed[C](ErrNotStarted)
	}
	if p.shutdownFuture != nil {
		future := p.shutdownFuture
		p.mu.Unlock()
		return future
	}
	p.shutdownRequested = true
	p.shutdownFuture = actor.NewFuture[C]()
	future := p.shutdownFuture
	p.mu.Unlock()

	p.runner.Run(func() { p.runShutdown(ctx, c) })
	return future
}

func (p *Process[C]) runStartup(ctx context.Context, c C) {
	current := c
	for _, step := range p.steps {
		p.mu.Lock()
		aborted := p.shutdownRequested
		p.mu.Unlock()
		if aborted {
			p.startupFuture.Complete(current, ErrAbortedByShutdown)
			return
		}

		p.mu.Lock()
		p.started = append(p.started, step)
		p.mu.Unlock()

		start := time.Now()
		openCtx, cancel := p.withTimeout(ctx)
		next, err := step.Open(openCtx, current)
		cancel()
		elapsed := time.Since(start)
		metrics.StepDuration.WithLabelValues(step.Name, "open").Observe(elapsed.Seconds())

		if err != nil {
			p.logger.Warn().Str("step", step.Name).Dur("elapsed", elapsed).Err(err).Msg("step open failed")
			p.startupFuture.Complete(current, fmt.Errorf("step %q open: %w", step.Name, err))
			return
		}
		p.logger.Debug().Str("step", step.Name).Dur("elapsed", elapsed).Msg("step opened")
		current = next
	}
	p.startupFuture.Complete(current, nil)
}

func (p *Process[C]) runShutdown(ctx context.Context, c C) {
	current := c
	var collected []error

	for {
		p.mu.Lock()
		n := len(p.started)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		step := p.started[n-1]
		p.started = p.started[:n-1]
		p.mu.Unlock()

		start := time.Now()
		closeCtx, cancel := p.withTimeout(ctx)
		next, err := step.Close(closeCtx, current)
		cancel()
		elapsed := time.Since(start)
		metrics.StepDuration.WithLabelValues(step.Name, "close").Observe(elapsed.Seconds())

		if err != nil {
			p.logger.Error().Str("step", step.Name).Dur("elapsed", elapsed).Err(err).Msg("step close failed")
			collected = append(collected, fmt.Errorf("step %q close: %w", step.Name, err))
			continue
		}
		p.logger.Debug().Str("step", step.Name).Dur("elapsed", elapsed).Msg("step closed")
		current = next
	}

	switch len(collected) {
	case 0:
		p.shutdownFuture.Complete(current, nil)
	case 1:
		p.shutdownFuture.Complete(current, collected[0])
	default:
		p.shutdownFuture.Complete(current, &ShutdownError{Errs: collected})
	}
}

func (p *Process[C]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
