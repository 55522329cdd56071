/*
Package log provides structured logging for partitionkit using zerolog.

The package wraps a single global zerolog.Logger, initialized once via Init,
with helpers for creating component- and partition-scoped child loggers. All
supervisor, health, startup, and transition code logs through a
component-scoped child logger rather than the package-level helpers; those
loggers carry only the component tag, and partition_id or term appear on a
line only where the call site adds them.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	supLog := log.WithPartitionID(3)
	supLog.Info().Uint64("term", 7).Msg("became leader")

# Context loggers

  - WithComponent("supervisor"|"health"|"startup"|"transition"): tags a subsystem.
  - WithPartitionID(id): tags the owning partition.
  - WithNodeID(id): tags the hosting node.

Component and partition tags compose: the reference step catalog builds its
per-handle loggers via
log.WithComponent("stream-processor").With().Uint32("partition_id", id).Logger().
*/
package log
