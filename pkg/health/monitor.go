package health

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/partitionkit/pkg/log"
	"github.com/cuemby/partitionkit/pkg/metrics"
)

// DefaultTick is the interval between health polls when none is configured.
const DefaultTick = time.Second

// Monitor aggregates the health of a set of named Source children and
// notifies registered FailureListeners exactly once per status edge. A
// Monitor is safe for concurrent use; registration and polling are
// serialized by an internal mutex, independent of any actor the owner
// happens to run on.
type Monitor struct {
	mu         sync.Mutex
	components map[string]Source
	order      []string
	listeners  []FailureListener
	status     Status
	stopTick   func()
	logger     zerolog.Logger
	label      string
}

// SetLabel sets the identifier (e.g. a partition ID) attached to this
// monitor's edge-transition metrics. Safe to call at any time; defaults to
// "unknown" if never set.
func (m *Monitor) SetLabel(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = label
}

func (m *Monitor) metricsLabel() string {
	if m.label == "" {
		return "unknown"
	}
	return m.label
}

// NewMonitor creates a Monitor with no registered components (status starts
// Healthy, per the "Healthy when no children are registered" rule).
func NewMonitor() *Monitor {
	return &Monitor{
		components: make(map[string]Source),
		status:     Healthy,
		logger:     log.WithComponent("health"),
	}
}

// RegisterComponent registers or replaces the health source for name.
// Idempotent: registering the same name again just replaces the source,
// preserving its position in poll order.
func (m *Monitor) RegisterComponent(name string, source Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.components[name]; !exists {
		m.order = append(m.order, name)
	}
	m.components[name] = source
}

// RemoveComponent removes the named component. No-op if absent.
func (m *Monitor) RemoveComponent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.components[name]; !exists {
		return
	}
	delete(m.components, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// AddFailureListener registers l. If the monitor's current status is not
// Healthy, l receives an immediate OnFailure; if it is Healthy, l receives
// an immediate OnRecovered (matching a fresh observer catching up).
func (m *Monitor) AddFailureListener(l FailureListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	current := m.status
	m.mu.Unlock()

	if current == Healthy {
		l.OnRecovered()
	} else {
		l.OnFailure()
	}
}

// RemoveFailureListener unregisters l. No-op if not registered.
func (m *Monitor) RemoveFailureListener(l FailureListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// GetHealthStatus returns the current aggregated status.
func (m *Monitor) GetHealthStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// NotifyUnrecoverable forces the aggregate to Dead and fires
// OnUnrecoverableFailure on every registered listener, regardless of what
// the polled children currently report. It is for an owner (such as the
// partition supervisor) that has independently decided a failure is
// unrecoverable and needs every listener told, not just its own children's
// next poll result.
func (m *Monitor) NotifyUnrecoverable() {
	m.mu.Lock()
	prev := m.status
	m.status = Dead
	label := m.metricsLabel()
	listeners := append([]FailureListener(nil), m.listeners...)
	m.mu.Unlock()

	if prev != Dead {
		m.logger.Debug().Str("prev", prev.String()).Msg("health status forced to dead")
	}
	metrics.HealthEdgesTotal.WithLabelValues(label, "unrecoverable").Inc()
	for _, l := range listeners {
		l.OnUnrecoverableFailure()
	}
}

// StartMonitoring begins polling every child once per tick (default
// DefaultTick when tick <= 0) and returns a stop function. Calling
// StartMonitoring again replaces the previous ticker.
func (m *Monitor) StartMonitoring(tick time.Duration) (stop func()) {
	if tick <= 0 {
		tick = DefaultTick
	}

	m.mu.Lock()
	if m.stopTick != nil {
		m.stopTick()
	}
	m.mu.Unlock()

	stopCh := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.poll()
			case <-stopCh:
				return
			}
		}
	}()

	stopFn := func() { once.Do(func() { close(stopCh) }) }
	m.mu.Lock()
	m.stopTick = stopFn
	m.mu.Unlock()
	return stopFn
}

// poll evaluates every child once, recomputes the aggregate, and fires
// listener edges. It holds the lock only long enough to snapshot state;
// listener callbacks run outside the lock so a listener may safely call
// back into the monitor (e.g. to remove itself).
func (m *Monitor) poll() {
	m.mu.Lock()
	sources := make([]Source, 0, len(m.order))
	for _, name := range m.order {
		sources = append(sources, m.components[name])
	}
	prev := m.status
	m.mu.Unlock()

	next := aggregate(sources)

	m.mu.Lock()
	m.status = next
	label := m.metricsLabel()
	listeners := append([]FailureListener(nil), m.listeners...)
	m.mu.Unlock()

	if next == prev {
		return
	}

	m.logger.Debug().Str("prev", prev.String()).Str("next", next.String()).Msg("health status changed")

	if prev == Healthy && next != Healthy {
		metrics.HealthEdgesTotal.WithLabelValues(label, "failure").Inc()
		for _, l := range listeners {
			l.OnFailure()
		}
	}
	if prev != Healthy && next == Healthy {
		metrics.HealthEdgesTotal.WithLabelValues(label, "recovered").Inc()
		for _, l := range listeners {
			l.OnRecovered()
		}
	}
	if next == Dead && prev != Dead {
		metrics.HealthEdgesTotal.WithLabelValues(label, "unrecoverable").Inc()
		for _, l := range listeners {
			l.OnUnrecoverableFailure()
		}
	}
}

// aggregate implements "Dead if any child Dead, else Unhealthy if any child
// Unhealthy, else Healthy" (vacuously Healthy with zero children).
func aggregate(sources []Source) Status {
	worst := Healthy
	for _, s := range sources {
		st := s.GetHealthStatus()
		if st > worst {
			worst = st
		}
		if worst == Dead {
			break
		}
	}
	return worst
}
