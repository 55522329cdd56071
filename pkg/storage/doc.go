/*
Package storage provides the PartitionMetadataStore interface — persisted
processing/exporting pause flags keyed by partition ID — plus a reference
embedded-KV-backed implementation (BoltStore, on go.etcd.io/bbolt) and an
in-memory implementation (MemoryStore) used when no metadata store path is
configured.

The contractual surface the rest of the library depends on is the
interface, not the storage engine: a bootstrap step loads persisted flags
through it, and the supervisor saves them back through it whenever a user
pauses or resumes processing/exporting.
*/
package storage
