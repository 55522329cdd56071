package startup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ctxT is the shared per-test context type threaded through a chain of
// Steps: each open/close appends its own name so ordering can be asserted.
type ctxT struct {
	mu     *sync.Mutex
	opened []string
	closed []string
}

func newCtxT() ctxT {
	return ctxT{mu: &sync.Mutex{}}
}

func (c ctxT) withOpened(name string) ctxT {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(append([]string(nil), c.opened...), name)
	return c
}

func (c ctxT) withClosed(name string) ctxT {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(append([]string(nil), c.closed...), name)
	return c
}

func namedStep(name string) Step[ctxT] {
	return Step[ctxT]{
		Name: name,
		Open: func(_ context.Context, c ctxT) (ctxT, error) {
			return c.withOpened(name), nil
		},
		Close: func(_ context.Context, c ctxT) (ctxT, error) {
			return c.withClosed(name), nil
		},
	}
}

func TestStartupOpensInOrder(t *testing.T) {
	p := New([]Step[ctxT]{namedStep("a"), namedStep("b"), namedStep("c")})
	c, err := p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, c.opened)
}

func TestStartupCalledTwiceFailsSecondTime(t *testing.T) {
	p := New([]Step[ctxT]{namedStep("a")})
	_, err := p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	require.NoError(t, err)

	_, err = p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestShutdownBeforeStartupFails(t *testing.T) {
	p := New([]Step[ctxT]{namedStep("a")})
	_, err := p.Shutdown(context.Background(), newCtxT()).Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestShutdownReversesOpenOrder(t *testing.T) {
	p := New([]Step[ctxT]{namedStep("a"), namedStep("b"), namedStep("c")})
	c, err := p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	require.NoError(t, err)

	c, err = p.Shutdown(context.Background(), c).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, c.closed)
}

func TestShutdownIsIdempotentAndReturnsSameFuture(t *testing.T) {
	p := New([]Step[ctxT]{namedStep("a")})
	c, err := p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	require.NoError(t, err)

	f1 := p.Shutdown(context.Background(), c)
	f2 := p.Shutdown(context.Background(), c)
	assert.Same(t, f1, f2)

	_, err = f1.Wait(context.Background())
	require.NoError(t, err)
}

func TestStepOpenFailureStopsRemainingStepsAndTeardownClosesOpened(t *testing.T) {
	boom := errors.New("boom")
	failing := Step[ctxT]{
		Name: "fails",
		Open: func(_ context.Context, c ctxT) (ctxT, error) {
			return c, boom
		},
		Close: func(_ context.Context, c ctxT) (ctxT, error) {
			return c.withClosed("fails"), nil
		},
	}
	p := New([]Step[ctxT]{namedStep("a"), failing, namedStep("never-opened")})

	c, err := p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, c.opened)

	c, err = p.Shutdown(context.Background(), c).Wait(context.Background())
	require.NoError(t, err)
	// The failed step was pushed onto the stack before Open ran, so its
	// Close still runs; the step that was never reached does not.
	assert.Equal(t, []string{"fails", "a"}, c.closed)
}

func TestShutdownNeverShortCircuitsAndAggregatesErrors(t *testing.T) {
	errA := errors.New("close a failed")
	errC := errors.New("close c failed")
	stepA := Step[ctxT]{
		Name: "a",
		Open: func(_ context.Context, c ctxT) (ctxT, error) { return c.withOpened("a"), nil },
		Close: func(_ context.Context, c ctxT) (ctxT, error) {
			return c, errA
		},
	}
	stepC := Step[ctxT]{
		Name: "c",
		Open: func(_ context.Context, c ctxT) (ctxT, error) { return c.withOpened("c"), nil },
		Close: func(_ context.Context, c ctxT) (ctxT, error) {
			return c, errC
		},
	}
	p := New([]Step[ctxT]{stepA, namedStep("b"), stepC})

	c, err := p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	require.NoError(t, err)

	_, err = p.Shutdown(context.Background(), c).Wait(context.Background())
	require.Error(t, err)
	var agg *ShutdownError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errs, 2)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
}

func TestShutdownDuringStartupAbortsRemainingSteps(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	blocking := Step[ctxT]{
		Name: "blocking",
		Open: func(_ context.Context, c ctxT) (ctxT, error) {
			close(entered)
			<-gate
			return c.withOpened("blocking"), nil
		},
		Close: func(_ context.Context, c ctxT) (ctxT, error) {
			return c.withClosed("blocking"), nil
		},
	}
	p := New([]Step[ctxT]{blocking, namedStep("never-reached")})

	startupFuture := p.Startup(context.Background(), newCtxT())
	<-entered

	// Shutdown is requested while the first step's Open is still blocked.
	shutdownFuture := p.Shutdown(context.Background(), newCtxT())
	close(gate)

	_, err := startupFuture.Wait(context.Background())
	assert.ErrorIs(t, err, ErrAbortedByShutdown)

	c, err := shutdownFuture.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"blocking"}, c.closed)
}

func TestStepTimeoutFailsOpen(t *testing.T) {
	slow := Step[ctxT]{
		Name: "slow",
		Open: func(ctx context.Context, c ctxT) (ctxT, error) {
			select {
			case <-time.After(50 * time.Millisecond):
				return c, nil
			case <-ctx.Done():
				return c, ctx.Err()
			}
		},
		Close: func(_ context.Context, c ctxT) (ctxT, error) { return c, nil },
	}
	p := New([]Step[ctxT]{slow}, WithStepTimeout[ctxT](time.Millisecond))
	_, err := p.Startup(context.Background(), newCtxT()).Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
