package refcatalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogStream is a demonstration log-stream handle: it records nothing
// beyond its own partition ID, standing in for whatever replicated-log
// reader/writer a real embedder would install here.
type LogStream struct {
	PartitionID uint32
}

// KVStore is a demonstration local metadata handle.
type KVStore struct {
	PartitionID uint32
}

// MessagingService is a demonstration inter-partition messaging handle.
type MessagingService struct {
	PartitionID uint32
}

// StreamProcessor is a demonstration record processor: Pause/Resume just
// flip a flag and log, standing in for whatever actually drains the log
// stream and applies records in a real deployment.
type StreamProcessor struct {
	mu     sync.Mutex
	paused bool
	logger zerolog.Logger
}

func newStreamProcessor(logger zerolog.Logger) *StreamProcessor {
	return &StreamProcessor{logger: logger}
}

func (p *StreamProcessor) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.logger.Debug().Msg("stream processor paused")
	return nil
}

func (p *StreamProcessor) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.logger.Debug().Msg("stream processor resumed")
	return nil
}

// Paused reports the processor's current pause state, for demo/inspection
// purposes.
func (p *StreamProcessor) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// ExporterDirector is a demonstration exporter: Pause/Resume flip a flag.
type ExporterDirector struct {
	mu     sync.Mutex
	paused bool
	logger zerolog.Logger
}

func newExporterDirector(logger zerolog.Logger) *ExporterDirector {
	return &ExporterDirector{logger: logger}
}

func (e *ExporterDirector) Pause(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.logger.Debug().Msg("exporter director paused")
	return nil
}

func (e *ExporterDirector) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	e.logger.Debug().Msg("exporter director resumed")
	return nil
}

// SnapshotDirector is a demonstration snapshot trigger: it only counts
// invocations.
type SnapshotDirector struct {
	mu     sync.Mutex
	count  int
	logger zerolog.Logger
}

func newSnapshotDirector(logger zerolog.Logger) *SnapshotDirector {
	return &SnapshotDirector{logger: logger}
}

func (s *SnapshotDirector) TriggerSnapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.logger.Info().Int("count", s.count).Msg("snapshot triggered")
	return nil
}

// Count reports how many snapshots have been triggered, for demo/
// inspection purposes.
func (s *SnapshotDirector) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
