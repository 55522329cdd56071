package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HealthStatus mirrors health.Status as a gauge: 0 = Healthy,
	// 1 = Unhealthy, 2 = Dead.
	HealthStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitionkit_health_status",
			Help: "Current aggregated health status by partition (0=healthy, 1=unhealthy, 2=dead)",
		},
		[]string{"partition_id"},
	)

	HealthEdgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partitionkit_health_edges_total",
			Help: "Total number of health status edge transitions by kind",
		},
		[]string{"partition_id", "edge"},
	)

	// TransitionDuration measures the time a to_leader/to_follower/
	// to_inactive call takes from invocation to future resolution.
	TransitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partitionkit_transition_duration_seconds",
			Help:    "Time taken for a role transition to settle, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"partition_id", "target_role"},
	)

	TransitionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partitionkit_transition_outcomes_total",
			Help: "Total number of role transitions by outcome",
		},
		[]string{"partition_id", "target_role", "outcome"}, // outcome: success|recoverable|unrecoverable
	)

	// StepDuration measures individual startup.Step open/close calls.
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partitionkit_step_duration_seconds",
			Help:    "Time taken for a single startup step's open or close call, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step", "phase"}, // phase: open|close
	)
)

func init() {
	prometheus.MustRegister(HealthStatus)
	prometheus.MustRegister(HealthEdgesTotal)
	prometheus.MustRegister(TransitionDuration)
	prometheus.MustRegister(TransitionOutcomesTotal)
	prometheus.MustRegister(StepDuration)
}

// Handler returns the Prometheus HTTP handler for embedding in an admin
// mux.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with
// labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
