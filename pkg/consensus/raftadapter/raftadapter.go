// Package raftadapter adapts a running hashicorp/raft instance to the
// consensus.Consensus contract. It is a reference implementation: the
// core partition lifecycle library only depends on consensus.Consensus,
// never on this package directly.
package raftadapter

import (
	"context"
	"strconv"
	"sync"

	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"

	"github.com/cuemby/partitionkit/pkg/consensus"
	"github.com/cuemby/partitionkit/pkg/log"
)

// Adapter translates a hashicorp/raft node's leader/follower/candidate
// observations and current log term into consensus.Role/term pairs.
type Adapter struct {
	raft     *raft.Raft
	observer *raft.Observer
	obsCh    chan raft.Observation
	stopCh   chan struct{}
	logger   zerolog.Logger

	mu                  sync.Mutex
	listeners           []consensus.RoleChangeListener
	lastRole            consensus.Role
	lastTerm            uint64
	goInactiveRequested bool
}

// New wraps r, registering an observer that watches for role changes.
// Callers remain responsible for constructing and bootstrapping r itself
// (transport, log store, snapshot store, FSM) — this adapter only
// translates its observable state.
func New(r *raft.Raft) *Adapter {
	a := &Adapter{
		raft:   r,
		obsCh:  make(chan raft.Observation, 16),
		stopCh: make(chan struct{}),
		logger: log.WithComponent("raftadapter"),
	}
	a.observer = raft.NewObserver(a.obsCh, true, nil)
	r.RegisterObserver(a.observer)
	go a.loop()
	a.notifyCurrent()
	return a
}

// Close deregisters the observer and stops the adapter's translation
// goroutine. It does not shut down the underlying raft.Raft instance.
func (a *Adapter) Close() {
	a.raft.DeregisterObserver(a.observer)
	close(a.stopCh)
}

func (a *Adapter) loop() {
	for {
		select {
		case <-a.obsCh:
			a.notifyCurrent()
		case <-a.stopCh:
			return
		}
	}
}

func (a *Adapter) AddRoleChangeListener(l consensus.RoleChangeListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

func (a *Adapter) RemoveRoleChangeListener(l consensus.RoleChangeListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.listeners {
		if existing == l {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

// StepDown asks raft to transfer leadership to another voter. Raft will
// subsequently observe this node settling into Follower, which surfaces
// through the registered listeners as a normal role change.
func (a *Adapter) StepDown(ctx context.Context) error {
	future := a.raft.LeadershipTransfer()
	done := make(chan error, 1)
	go func() { done <- future.Error() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GoInactive approximates the supervisor's "remove this replica from
// active participation" request. hashicorp/raft has no native inactive
// voter state reachable from the node itself (removing a server from the
// configuration is a leader-driven RemoveServer call); this adapter logs
// the request and tracks it for diagnostics, documenting the limitation
// rather than claiming a fidelity the underlying library does not offer.
func (a *Adapter) GoInactive(ctx context.Context) error {
	a.mu.Lock()
	a.goInactiveRequested = true
	a.mu.Unlock()
	a.logger.Warn().Msg("go_inactive requested: approximated as a no-op, " +
		"pending external removal from the raft configuration")
	return nil
}

func (a *Adapter) CurrentRole() (consensus.Role, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRole, a.lastTerm
}

func (a *Adapter) notifyCurrent() {
	role := translateState(a.raft.State())
	term := a.currentTerm()

	a.mu.Lock()
	changed := role != a.lastRole || term != a.lastTerm
	a.lastRole = role
	a.lastTerm = term
	listeners := append([]consensus.RoleChangeListener(nil), a.listeners...)
	a.mu.Unlock()

	if !changed {
		return
	}
	a.logger.Debug().Str("role", role.String()).Uint64("term", term).Msg("raft role observed")
	for _, l := range listeners {
		l.OnNewRole(role, term)
	}
}

func (a *Adapter) currentTerm() uint64 {
	stats := a.raft.Stats()
	term, err := strconv.ParseUint(stats["term"], 10, 64)
	if err != nil {
		return 0
	}
	return term
}

func translateState(s raft.RaftState) consensus.Role {
	switch s {
	case raft.Leader:
		return consensus.RoleLeader
	case raft.Follower:
		return consensus.RoleFollower
	case raft.Candidate:
		return consensus.RoleCandidate
	default:
		return consensus.RoleInactive
	}
}
