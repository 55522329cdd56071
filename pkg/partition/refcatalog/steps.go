package refcatalog

import (
	"context"

	"github.com/cuemby/partitionkit/pkg/consensus"
	"github.com/cuemby/partitionkit/pkg/log"
	"github.com/cuemby/partitionkit/pkg/partition"
	"github.com/cuemby/partitionkit/pkg/startup"
)

func logStreamStep() startup.Step[*partition.PartitionContext] {
	return startup.Step[*partition.PartitionContext]{
		Name: "log-stream",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.LogStream = &LogStream{PartitionID: pc.PartitionID}
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.LogStream = nil
			return pc, nil
		},
	}
}

func kvStoreStep() startup.Step[*partition.PartitionContext] {
	return startup.Step[*partition.PartitionContext]{
		Name: "kv-store",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.KVStore = &KVStore{PartitionID: pc.PartitionID}
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.KVStore = nil
			return pc, nil
		},
	}
}

func streamProcessorStep() startup.Step[*partition.PartitionContext] {
	return startup.Step[*partition.PartitionContext]{
		Name: "stream-processor",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.StreamProcessor = newStreamProcessor(log.WithComponent("stream-processor").With().Uint32("partition_id", pc.PartitionID).Logger())
			pc.DiskSpaceAvailable = true
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.StreamProcessor = nil
			return pc, nil
		},
	}
}

func exporterDirectorStep() startup.Step[*partition.PartitionContext] {
	return startup.Step[*partition.PartitionContext]{
		Name: "exporter-director",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.ExporterDirector = newExporterDirector(log.WithComponent("exporter-director").With().Uint32("partition_id", pc.PartitionID).Logger())
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.ExporterDirector = nil
			return pc, nil
		},
	}
}

func snapshotDirectorStep() startup.Step[*partition.PartitionContext] {
	return startup.Step[*partition.PartitionContext]{
		Name: "snapshot-director",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.SnapshotDirector = newSnapshotDirector(log.WithComponent("snapshot-director").With().Uint32("partition_id", pc.PartitionID).Logger())
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.SnapshotDirector = nil
			return pc, nil
		},
	}
}

func messagingServiceStep() startup.Step[*partition.PartitionContext] {
	return startup.Step[*partition.PartitionContext]{
		Name: "messaging-service",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.MessagingService = &MessagingService{PartitionID: pc.PartitionID}
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			pc.MessagingService = nil
			return pc, nil
		},
	}
}

// LeaderCatalog returns the reference leader-role step list: log stream,
// KV store, stream processor, exporter director, snapshot director, and
// messaging service all install.
func LeaderCatalog() []startup.Step[*partition.PartitionContext] {
	return []startup.Step[*partition.PartitionContext]{
		logStreamStep(),
		kvStoreStep(),
		streamProcessorStep(),
		exporterDirectorStep(),
		snapshotDirectorStep(),
		messagingServiceStep(),
	}
}

// FollowerCatalog returns the reference follower-role step list: log
// stream, KV store, snapshot director, and messaging service install;
// stream processing and exporting do not (followers neither process
// records nor export).
func FollowerCatalog() []startup.Step[*partition.PartitionContext] {
	return []startup.Step[*partition.PartitionContext]{
		logStreamStep(),
		kvStoreStep(),
		snapshotDirectorStep(),
		messagingServiceStep(),
	}
}

// InactiveCatalog returns the reference inactive-role step list: empty,
// since inactive installs nothing.
func InactiveCatalog() []startup.Step[*partition.PartitionContext] {
	return nil
}

// Catalogs returns the full role-keyed catalog map expected by
// partition.New / partition.NewTransitionEngine.
func Catalogs() map[consensus.Role][]startup.Step[*partition.PartitionContext] {
	return map[consensus.Role][]startup.Step[*partition.PartitionContext]{
		consensus.RoleLeader:   LeaderCatalog(),
		consensus.RoleFollower: FollowerCatalog(),
		consensus.RoleInactive: InactiveCatalog(),
	}
}
