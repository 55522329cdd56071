package partition

import (
	"context"

	"github.com/cuemby/partitionkit/pkg/consensus"
)

// LogStream is the handle a leader or follower's log-stream step installs
// into the context. Its shape is opaque to the core — only the reference
// step catalog and an embedder's own steps know how to populate it.
type LogStream interface{}

// KVStore is the handle a leader or follower's kv-store step installs.
type KVStore interface{}

// MessagingService is the handle installed for inter-partition messaging
// participation.
type MessagingService interface{}

// StreamProcessor is the handle a leader's stream-processor step
// installs. The supervisor calls Pause/Resume directly in response to
// user requests and disk-space gating.
type StreamProcessor interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// ExporterDirector is the handle a leader's exporter-director step
// installs.
type ExporterDirector interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// SnapshotDirector is the handle a leader or follower's snapshot-director
// step installs.
type SnapshotDirector interface {
	TriggerSnapshot(ctx context.Context) error
}

// PartitionListener is notified of role settlement. Implementations are
// typically the record processor or exporter's own business-logic layer,
// reacting to the partition becoming able (or unable) to serve a role.
// A non-nil error from any method is treated as a transition install
// failure.
type PartitionListener interface {
	OnBecomingLeader(ctx context.Context, partitionID uint32, term uint64, log LogStream) error
	OnBecomingFollower(ctx context.Context, partitionID uint32, term uint64) error
	OnBecomingInactive(ctx context.Context, partitionID uint32, term uint64) error
}

// PartitionContext is the mutable state bag threaded through every
// startup step for this partition. It is shared by reference — steps,
// the transition engine, and the supervisor all hold the same pointer —
// but by contract is mutated only from the supervisor's own actor.
type PartitionContext struct {
	PartitionID uint32
	NodeID      uint64

	CurrentRole consensus.Role
	CurrentTerm uint64

	DiskSpaceAvailable bool
	ProcessingPaused   bool
	ExportingPaused    bool

	LogStream         LogStream
	StreamProcessor   StreamProcessor
	ExporterDirector  ExporterDirector
	SnapshotDirector  SnapshotDirector
	MessagingService  MessagingService
	KVStore           KVStore

	Listeners []PartitionListener
}
