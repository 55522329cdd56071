package partition

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/partitionkit/pkg/actor"
	"github.com/cuemby/partitionkit/pkg/consensus"
	"github.com/cuemby/partitionkit/pkg/log"
	"github.com/cuemby/partitionkit/pkg/metrics"
	"github.com/cuemby/partitionkit/pkg/startup"
)

// TransitionEngine maps a target role onto an install/teardown plan: close
// the previously installed role's steps in reverse, then open the target
// role's steps in configured order. Catalogs is keyed by
// consensus.RoleLeader, consensus.RoleFollower, and consensus.RoleInactive
// — the only roles the supervisor ever targets directly.
type TransitionEngine struct {
	catalogs map[consensus.Role][]startup.Step[*PartitionContext]
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	current *startup.Process[*PartitionContext]
}

// NewTransitionEngine builds an engine over catalogs. stepTimeout bounds
// every individual step's open/close call (zero disables the bound).
func NewTransitionEngine(catalogs map[consensus.Role][]startup.Step[*PartitionContext], stepTimeout time.Duration) *TransitionEngine {
	return &TransitionEngine{
		catalogs: catalogs,
		timeout:  stepTimeout,
		logger:   log.WithComponent("transition"),
	}
}

// ToLeader closes the previously installed role's steps, then opens the
// leader catalog.
func (e *TransitionEngine) ToLeader(ctx context.Context, term uint64, pc *PartitionContext) *actor.Future[*PartitionContext] {
	return e.transitionTo(ctx, consensus.RoleLeader, term, pc)
}

// ToFollower closes the previously installed role's steps, then opens the
// follower catalog.
func (e *TransitionEngine) ToFollower(ctx context.Context, term uint64, pc *PartitionContext) *actor.Future[*PartitionContext] {
	return e.transitionTo(ctx, consensus.RoleFollower, term, pc)
}

// ToInactive closes the previously installed role's steps and opens no
// new ones (the inactive catalog is conventionally empty).
func (e *TransitionEngine) ToInactive(ctx context.Context, pc *PartitionContext) *actor.Future[*PartitionContext] {
	return e.transitionTo(ctx, consensus.RoleInactive, 0, pc)
}

func (e *TransitionEngine) transitionTo(ctx context.Context, role consensus.Role, term uint64, pc *PartitionContext) *actor.Future[*PartitionContext] {
	future := actor.NewFuture[*PartitionContext]()
	timer := metrics.NewTimer()

	go func() {
		e.mu.Lock()
		prev := e.current
		e.mu.Unlock()

		if prev != nil {
			if _, err := prev.Shutdown(ctx, pc).Wait(ctx); err != nil {
				e.logger.Warn().Err(err).Str("role", role.String()).Msg("previous role's steps closed with errors")
			}
		}

		next := startup.New(
			e.catalogs[role],
			startup.WithStepTimeout[*PartitionContext](e.timeout),
			startup.WithLogger[*PartitionContext](e.logger),
		)
		e.mu.Lock()
		e.current = next
		e.mu.Unlock()

		result, err := next.Startup(ctx, pc).Wait(ctx)

		outcome := "success"
		switch {
		case err != nil && IsUnrecoverable(err):
			outcome = "unrecoverable"
		case err != nil:
			outcome = "recoverable"
		}
		metrics.TransitionOutcomesTotal.WithLabelValues(partitionLabel(pc), role.String(), outcome).Inc()
		timer.ObserveDurationVec(metrics.TransitionDuration, partitionLabel(pc), role.String())

		future.Complete(result, err)
	}()
	return future
}

func partitionLabel(pc *PartitionContext) string {
	if pc == nil {
		return "unknown"
	}
	return strconv.FormatUint(uint64(pc.PartitionID), 10)
}
