/*
Package health implements the partition supervisor's health supervision
tree: a Monitor that polls a set of named Source children on a fixed tick,
aggregates their worst status, and notifies FailureListeners exactly once
per status edge (Healthy→unhealthy, unhealthy→Healthy, any→Dead).

The supervisor owns a Monitor, registers itself as a FailureListener, and
exposes GetHealthStatus as its own public health query. It does not
register the services its steps open as components itself; embedders do
that through Supervisor.HealthMonitor
— building the hierarchical "supervision tree" described by the spec one
level at a time: Monitor -> supervisor -> the supervisor's own listeners.
*/
package health
