// Package fakeconsensus provides an in-memory consensus.Consensus
// implementation for the CLI demo and the supervisor's own test suite. It
// has no networking and no persistence: SetRole is the only way a role
// change happens, making tests able to script exact (role, term)
// sequences.
package fakeconsensus

import (
	"context"
	"sync"

	"github.com/cuemby/partitionkit/pkg/consensus"
)

// Consensus is a single-process, test-oriented stand-in for a real
// replication protocol. Safe for concurrent use.
type Consensus struct {
	mu        sync.Mutex
	role      consensus.Role
	term      uint64
	listeners []consensus.RoleChangeListener

	// stepDowns/goInactives count invocations for test assertions.
	stepDowns   int
	goInactives int
}

// New creates a Consensus starting in RoleInactive at term 0.
func New() *Consensus {
	return &Consensus{role: consensus.RoleInactive}
}

func (c *Consensus) AddRoleChangeListener(l consensus.RoleChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Consensus) RemoveRoleChangeListener(l consensus.RoleChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// SetRole simulates the consensus layer arriving at a new (role, term) and
// notifies every registered listener, in registration order.
func (c *Consensus) SetRole(role consensus.Role, term uint64) {
	c.mu.Lock()
	c.role = role
	c.term = term
	listeners := append([]consensus.RoleChangeListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnNewRole(role, term)
	}
}

// StepDown transitions directly to RoleFollower at the same term, as a
// real consensus library would after a successful leadership transfer.
func (c *Consensus) StepDown(ctx context.Context) error {
	c.mu.Lock()
	c.stepDowns++
	term := c.term
	c.mu.Unlock()
	c.SetRole(consensus.RoleFollower, term)
	return nil
}

// GoInactive transitions directly to RoleInactive at the same term.
func (c *Consensus) GoInactive(ctx context.Context) error {
	c.mu.Lock()
	c.goInactives++
	term := c.term
	c.mu.Unlock()
	c.SetRole(consensus.RoleInactive, term)
	return nil
}

func (c *Consensus) CurrentRole() (consensus.Role, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role, c.term
}

// StepDownCount and GoInactiveCount report invocation counts, for test
// assertions on supervisor failure-handling paths.
func (c *Consensus) StepDownCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepDowns
}

func (c *Consensus) GoInactiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goInactives
}
