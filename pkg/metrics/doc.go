/*
Package metrics defines and registers the Prometheus collectors the
partition supervisor and health monitor update: an aggregated health
status gauge, health edge counters, transition duration/outcome metrics,
and a step open/close duration histogram. Handler exposes them via
promhttp for an admin mux to scrape.
*/
package metrics
