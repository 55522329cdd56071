// Package refcatalog is demonstration wiring over the abstract
// startup.Step[*partition.PartitionContext] contract: a reference
// role-specific step catalog (log stream, KV store, stream processor,
// exporter director, snapshot director, messaging service) and a
// reference bootstrap step catalog (persisted metadata, disk-space
// polling, optional health HTTP exporter). None of this is the core's
// contractual surface — an embedder may supply any step list of its own.
package refcatalog
