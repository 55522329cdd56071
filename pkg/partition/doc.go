/*
Package partition implements the partition supervisor: the component that
owns a single partition replica's role state machine, reacts to
consensus-driven role changes, drives role-specific install/teardown
through a transition engine, supervises the health of whatever services
get installed, and persists the two user-controlled pause flags across
restarts.

Everything the supervisor depends on beyond the standard library and this
module's own pkg/actor, pkg/config, pkg/health, pkg/log, pkg/metrics, and
pkg/startup is expressed as a
small interface — consensus.Consensus, storage.PartitionMetadataStore,
and the handle interfaces declared in types.go (LogStream,
StreamProcessor, ExporterDirector, SnapshotDirector, MessagingService,
KVStore) — so the supervisor can be exercised against fakes in tests and
against real adapters in production without this package importing
either.
*/
package partition
