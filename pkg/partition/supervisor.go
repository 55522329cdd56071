package partition

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/partitionkit/pkg/actor"
	"github.com/cuemby/partitionkit/pkg/config"
	"github.com/cuemby/partitionkit/pkg/consensus"
	"github.com/cuemby/partitionkit/pkg/health"
	"github.com/cuemby/partitionkit/pkg/log"
	"github.com/cuemby/partitionkit/pkg/metrics"
	"github.com/cuemby/partitionkit/pkg/startup"
	"github.com/cuemby/partitionkit/pkg/storage"
)

// supervisorRole is the supervisor's own coarse role state, distinct from
// consensus.Role: every non-Leader, non-Inactive role (Follower,
// Candidate, or any other passive/promotable role a consensus adapter
// reports) maps onto stateFollower.
type supervisorRole int

const (
	stateUninit supervisorRole = iota
	stateInactive
	stateFollower
	stateLeader
)

// Supervisor owns a single partition replica's role state machine. It
// reacts to consensus-driven role changes on its own actor, drives
// role-specific install/teardown through a TransitionEngine, supervises
// health, and persists the processing/exporting pause flags.
type Supervisor struct {
	runtime    *actor.Actor
	transition *TransitionEngine
	health     *health.Monitor
	consensus  consensus.Consensus
	store      storage.PartitionMetadataStore
	bootstrap  *startup.Process[*PartitionContext]
	cfg        config.Config
	logger     zerolog.Logger

	pc *PartitionContext

	mu                sync.Mutex
	state             supervisorRole
	closing           bool
	unrecoverable     bool
	servicesInstalled bool
	stopHealthTick    func()
}

// New builds a Supervisor. bootstrapSteps run once at Bootstrap and close
// once at CloseAsync; roleCatalogs maps consensus.RoleLeader/RoleFollower/
// RoleInactive to that role's install steps.
func New(
	cfg config.Config,
	pc *PartitionContext,
	cons consensus.Consensus,
	store storage.PartitionMetadataStore,
	bootstrapSteps []startup.Step[*PartitionContext],
	roleCatalogs map[consensus.Role][]startup.Step[*PartitionContext],
) *Supervisor {
	s := &Supervisor{
		runtime:    actor.New(actor.Config{}),
		transition: NewTransitionEngine(roleCatalogs, cfg.StepOpenTimeout),
		health:     health.NewMonitor(),
		consensus:  cons,
		store:      store,
		cfg:        cfg,
		logger:     log.WithComponent("supervisor"),
		pc:         pc,
		state:      stateUninit,
	}
	s.health.SetLabel(partitionLabel(pc))
	s.bootstrap = startup.New(
		bootstrapSteps,
		startup.WithStepTimeout[*PartitionContext](cfg.StepOpenTimeout),
		startup.WithLogger[*PartitionContext](s.logger),
	)
	return s
}

// Bootstrap registers the supervisor with consensus and the health
// monitor, runs the bootstrap step catalog, arms health polling, and
// finally invokes the role-change handler with consensus's current
// (role, term). A bootstrap step failure is terminal.
func (s *Supervisor) Bootstrap(ctx context.Context) *actor.Future[struct{}] {
	return actor.Call(s.runtime, func() (struct{}, error) {
		s.mu.Lock()
		s.stopHealthTick = s.health.StartMonitoring(s.cfg.HealthCheckTick)
		s.mu.Unlock()

		s.consensus.AddRoleChangeListener(s)
		s.health.AddFailureListener(s)

		result, err := s.bootstrap.Startup(ctx, s.pc).Wait(ctx)
		if err != nil {
			s.mu.Lock()
			s.stopHealthTick()
			s.mu.Unlock()
			s.runtime.Close()
			return struct{}{}, fmt.Errorf("bootstrap: %w", err)
		}
		s.pc = result

		role, term := s.consensus.CurrentRole()
		s.handleRoleChange(role, term)
		return struct{}{}, nil
	})
}

// CloseAsync transitions to inactive, closes the bootstrap steps in
// reverse, stops health polling, and shuts down the supervisor's actor.
// Once invoked, every later role-change event is a no-op (SPEC_FULL
// §4.5.1): the supervisor refuses new transitions rather than queuing
// them behind the close.
func (s *Supervisor) CloseAsync(ctx context.Context) *actor.Future[struct{}] {
	return actor.Call(s.runtime, func() (struct{}, error) {
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			return struct{}{}, nil
		}
		s.closing = true
		s.mu.Unlock()

		_, toInactiveErr := s.transition.ToInactive(ctx, s.pc).Wait(ctx)
		if toInactiveErr != nil {
			s.logger.Warn().Err(toInactiveErr).Msg("close: to_inactive completed with errors")
		}

		_, shutdownErr := s.bootstrap.Shutdown(ctx, s.pc).Wait(ctx)

		s.mu.Lock()
		if s.stopHealthTick != nil {
			s.stopHealthTick()
		}
		s.mu.Unlock()

		s.runtime.Close()

		if shutdownErr != nil {
			return struct{}{}, fmt.Errorf("close: bootstrap shutdown: %w", shutdownErr)
		}
		return struct{}{}, nil
	})
}

// OnNewRole satisfies consensus.RoleChangeListener. It may be called from
// any goroutine; the actual state-machine reaction is bounced onto the
// supervisor's own actor.
func (s *Supervisor) OnNewRole(role consensus.Role, term uint64) {
	s.runtime.Run(func() { s.handleRoleChange(role, term) })
}

func (s *Supervisor) handleRoleChange(role consensus.Role, term uint64) {
	s.mu.Lock()
	closing := s.closing
	unrecoverable := s.unrecoverable
	s.mu.Unlock()
	if closing {
		s.logger.Debug().Str("role", role.String()).Uint64("term", term).Msg("role change ignored: supervisor is closing")
		return
	}
	if unrecoverable {
		s.logger.Debug().Str("role", role.String()).Uint64("term", term).Msg("role change ignored: supervisor is permanently dead")
		s.notifyInactive(context.Background(), term)
		return
	}

	s.mu.Lock()
	current := s.state
	s.mu.Unlock()

	switch {
	case role == consensus.RoleLeader:
		if current != stateLeader {
			s.runTransition(stateLeader, term)
		}
	case role == consensus.RoleInactive:
		s.runTransition(stateInactive, term)
	default:
		if current == stateUninit || current == stateLeader {
			s.runTransition(stateFollower, term)
		}
	}
}

func (s *Supervisor) runTransition(target supervisorRole, term uint64) {
	ctx := context.Background()
	s.pc.CurrentTerm = term

	var err error
	switch target {
	case stateLeader:
		_, err = s.transition.ToLeader(ctx, term, s.pc).Wait(ctx)
	case stateFollower:
		_, err = s.transition.ToFollower(ctx, term, s.pc).Wait(ctx)
	case stateInactive:
		_, err = s.transition.ToInactive(ctx, s.pc).Wait(ctx)
	}

	if err == nil && (target == stateLeader || target == stateFollower) {
		err = s.notifyBecoming(ctx, target, term)
	}

	if err != nil {
		s.handleTransitionFailure(ctx, target, term, err)
		return
	}

	s.mu.Lock()
	s.state = target
	s.servicesInstalled = true
	s.mu.Unlock()
}

func (s *Supervisor) notifyBecoming(ctx context.Context, target supervisorRole, term uint64) error {
	for _, l := range s.pc.Listeners {
		var err error
		switch target {
		case stateLeader:
			err = l.OnBecomingLeader(ctx, s.pc.PartitionID, term, s.pc.LogStream)
		case stateFollower:
			err = l.OnBecomingFollower(ctx, s.pc.PartitionID, term)
		}
		if err != nil {
			return fmt.Errorf("partition listener: %w", err)
		}
	}
	return nil
}

func (s *Supervisor) notifyInactive(ctx context.Context, term uint64) {
	for _, l := range s.pc.Listeners {
		if err := l.OnBecomingInactive(ctx, s.pc.PartitionID, term); err != nil {
			s.logger.Warn().Err(err).Msg("partition listener on_becoming_inactive failed")
		}
	}
}

func (s *Supervisor) handleTransitionFailure(ctx context.Context, target supervisorRole, term uint64, err error) {
	s.mu.Lock()
	s.servicesInstalled = false
	s.mu.Unlock()

	s.logger.Error().Err(err).Str("target", target.String()).Uint64("term", term).Msg("transition install failed")

	if IsUnrecoverable(err) {
		s.goUnrecoverable(ctx, term)
		return
	}

	s.notifyInactive(ctx, term)

	switch target {
	case stateLeader:
		if _, consensusTerm := s.consensus.CurrentRole(); consensusTerm == term {
			if err := s.consensus.StepDown(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("step_down request failed")
			}
		}
	case stateFollower:
		if err := s.consensus.GoInactive(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("go_inactive request failed")
		}
	}
}

func (s *Supervisor) goUnrecoverable(ctx context.Context, term uint64) {
	s.mu.Lock()
	alreadyUnrecoverable := s.unrecoverable
	s.unrecoverable = true
	s.mu.Unlock()
	if alreadyUnrecoverable {
		return
	}

	if _, err := s.transition.ToInactive(ctx, s.pc).Wait(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("unrecoverable: to_inactive completed with errors")
	}
	if err := s.consensus.GoInactive(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("unrecoverable: go_inactive request failed")
	}

	s.health.NotifyUnrecoverable()
	s.notifyInactive(ctx, term)
}

// PauseProcessing marks processing user-paused, persists the flag, and
// pauses the installed stream processor, if any.
func (s *Supervisor) PauseProcessing() *actor.Future[struct{}] {
	return actor.Call(s.runtime, func() (struct{}, error) {
		s.pc.ProcessingPaused = true
		if err := s.savePaused(); err != nil {
			return struct{}{}, err
		}
		if s.pc.StreamProcessor != nil {
			return struct{}{}, s.pc.StreamProcessor.Pause(context.Background())
		}
		return struct{}{}, nil
	})
}

// ResumeProcessing clears the user-paused flag and resumes the stream
// processor, unless disk space is currently unavailable (disk-space
// gating takes precedence).
func (s *Supervisor) ResumeProcessing() *actor.Future[struct{}] {
	return actor.Call(s.runtime, func() (struct{}, error) {
		s.pc.ProcessingPaused = false
		if err := s.savePaused(); err != nil {
			return struct{}{}, err
		}
		if s.pc.StreamProcessor != nil && s.pc.DiskSpaceAvailable {
			return struct{}{}, s.pc.StreamProcessor.Resume(context.Background())
		}
		return struct{}{}, nil
	})
}

// PauseExporting marks exporting user-paused, persists the flag, and
// pauses the installed exporter director, if any.
func (s *Supervisor) PauseExporting() *actor.Future[struct{}] {
	return actor.Call(s.runtime, func() (struct{}, error) {
		s.pc.ExportingPaused = true
		if err := s.savePaused(); err != nil {
			return struct{}{}, err
		}
		if s.pc.ExporterDirector != nil {
			return struct{}{}, s.pc.ExporterDirector.Pause(context.Background())
		}
		return struct{}{}, nil
	})
}

// ResumeExporting clears the user-paused flag and resumes the exporter
// director, if any.
func (s *Supervisor) ResumeExporting() *actor.Future[struct{}] {
	return actor.Call(s.runtime, func() (struct{}, error) {
		s.pc.ExportingPaused = false
		if err := s.savePaused(); err != nil {
			return struct{}{}, err
		}
		if s.pc.ExporterDirector != nil {
			return struct{}{}, s.pc.ExporterDirector.Resume(context.Background())
		}
		return struct{}{}, nil
	})
}

// TriggerSnapshot asks the installed snapshot director to take a
// snapshot now. No-op if no snapshot director is installed.
func (s *Supervisor) TriggerSnapshot() *actor.Future[struct{}] {
	return actor.Call(s.runtime, func() (struct{}, error) {
		if s.pc.SnapshotDirector == nil {
			return struct{}{}, nil
		}
		return struct{}{}, s.pc.SnapshotDirector.TriggerSnapshot(context.Background())
	})
}

// GetStreamProcessor returns the currently installed stream processor
// handle, or nil if none is installed (any role other than leader).
func (s *Supervisor) GetStreamProcessor() *actor.Future[StreamProcessor] {
	return actor.Call(s.runtime, func() (StreamProcessor, error) {
		return s.pc.StreamProcessor, nil
	})
}

// GetExporterDirector returns the currently installed exporter director
// handle, or nil if none is installed.
func (s *Supervisor) GetExporterDirector() *actor.Future[ExporterDirector] {
	return actor.Call(s.runtime, func() (ExporterDirector, error) {
		return s.pc.ExporterDirector, nil
	})
}

// OnDiskSpaceNotAvailable marks disk space unavailable and asks the
// installed stream processor to pause.
func (s *Supervisor) OnDiskSpaceNotAvailable() {
	s.runtime.Run(func() {
		s.pc.DiskSpaceAvailable = false
		if s.pc.StreamProcessor != nil {
			if err := s.pc.StreamProcessor.Pause(context.Background()); err != nil {
				s.logger.Warn().Err(err).Msg("disk-space pause request failed")
			}
		}
	})
}

// OnDiskSpaceAvailable marks disk space available again and, unless
// processing is also user-paused, resumes the installed stream
// processor.
func (s *Supervisor) OnDiskSpaceAvailable() {
	s.runtime.Run(func() {
		s.pc.DiskSpaceAvailable = true
		if s.pc.StreamProcessor != nil && !s.pc.ProcessingPaused {
			if err := s.pc.StreamProcessor.Resume(context.Background()); err != nil {
				s.logger.Warn().Err(err).Msg("disk-space resume request failed")
			}
		}
	})
}

// OnFailure satisfies health.FailureListener: invoked when the health
// monitor's aggregate status drops below Healthy.
func (s *Supervisor) OnFailure() {
	s.logger.Warn().Uint32("partition_id", s.pc.PartitionID).Msg("partition health degraded")
}

// OnRecovered satisfies health.FailureListener.
func (s *Supervisor) OnRecovered() {
	s.logger.Info().Uint32("partition_id", s.pc.PartitionID).Msg("partition health recovered")
}

// OnUnrecoverableFailure satisfies health.FailureListener: invoked when
// the aggregate status reaches Dead, independent of any transition
// failure that may have caused it.
func (s *Supervisor) OnUnrecoverableFailure() {
	s.runtime.Run(func() {
		s.goUnrecoverable(context.Background(), s.pc.CurrentTerm)
	})
}

// AddFailureListener registers l with the supervisor's health monitor.
func (s *Supervisor) AddFailureListener(l health.FailureListener) {
	s.health.AddFailureListener(l)
}

// RemoveFailureListener unregisters l from the supervisor's health
// monitor.
func (s *Supervisor) RemoveFailureListener(l health.FailureListener) {
	s.health.RemoveFailureListener(l)
}

// GetHealthStatus returns Dead permanently once an unrecoverable failure
// has occurred; otherwise it reflects the health monitor's aggregate.
func (s *Supervisor) GetHealthStatus() health.Status {
	s.mu.Lock()
	dead := s.unrecoverable
	s.mu.Unlock()
	if dead {
		return health.Dead
	}
	status := s.health.GetHealthStatus()
	metrics.HealthStatus.WithLabelValues(partitionLabel(s.pc)).Set(float64(status))
	return status
}

// HealthMonitor exposes the supervisor's health monitor so embedders can
// register additional component sources (the installed stream processor,
// exporter director, …) as steps open them.
func (s *Supervisor) HealthMonitor() *health.Monitor {
	return s.health
}

func (s *Supervisor) savePaused() error {
	if s.store == nil {
		return nil
	}
	return s.store.SavePaused(s.pc.PartitionID, s.pc.ProcessingPaused, s.pc.ExportingPaused)
}

func (r supervisorRole) String() string {
	switch r {
	case stateUninit:
		return "uninit"
	case stateInactive:
		return "inactive"
	case stateFollower:
		return "follower"
	case stateLeader:
		return "leader"
	default:
		return "unknown"
	}
}
