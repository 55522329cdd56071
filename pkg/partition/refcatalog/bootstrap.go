package refcatalog

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cuemby/partitionkit/pkg/health"
	"github.com/cuemby/partitionkit/pkg/log"
	"github.com/cuemby/partitionkit/pkg/partition"
	"github.com/cuemby/partitionkit/pkg/startup"
	"github.com/cuemby/partitionkit/pkg/storage"
)

// PartitionMetadataStep loads the two persisted pause flags from store
// into the context at bootstrap; it has no teardown action of its own
// (the pause/resume operations are what write back to store).
func PartitionMetadataStep(store storage.PartitionMetadataStore) startup.Step[*partition.PartitionContext] {
	return startup.Step[*partition.PartitionContext]{
		Name: "partition-metadata",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			processingPaused, exportingPaused, err := store.LoadPaused(pc.PartitionID)
			if err != nil {
				return pc, err
			}
			pc.ProcessingPaused = processingPaused
			pc.ExportingPaused = exportingPaused
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			return pc, nil
		},
	}
}

// DiskSpaceObserver receives disk-space edge notifications. A
// *partition.Supervisor satisfies this via its own
// OnDiskSpaceAvailable/OnDiskSpaceNotAvailable methods.
type DiskSpaceObserver interface {
	OnDiskSpaceAvailable()
	OnDiskSpaceNotAvailable()
}

// DiskSpaceMonitorStep polls the filesystem holding path every tick and
// notifies observer on each available/unavailable edge, using
// golang.org/x/sys/unix.Statfs to read free bytes. minFreeBytes sets the
// threshold below which space is considered unavailable. The observer is
// usually the supervisor itself, wired up by the caller once the
// supervisor variable exists (the bootstrap step list is constructed
// before New returns, so callers typically capture a pointer variable
// assigned immediately after).
func DiskSpaceMonitorStep(path string, minFreeBytes uint64, tick time.Duration, observer DiskSpaceObserver) startup.Step[*partition.PartitionContext] {
	logger := log.WithComponent("disk-space-monitor")
	var stop chan struct{}

	poll := func() (available bool, err error) {
		var stat unix.Statfs_t
		if err := unix.Statfs(path, &stat); err != nil {
			return false, err
		}
		free := stat.Bavail * uint64(stat.Bsize)
		return free >= minFreeBytes, nil
	}

	return startup.Step[*partition.PartitionContext]{
		Name: "disk-space-monitor",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			if tick <= 0 {
				tick = 30 * time.Second
			}
			available, err := poll()
			if err != nil {
				return pc, err
			}
			pc.DiskSpaceAvailable = available

			stop = make(chan struct{})
			go func() {
				ticker := time.NewTicker(tick)
				defer ticker.Stop()
				last := available
				for {
					select {
					case <-ticker.C:
						now, err := poll()
						if err != nil {
							logger.Warn().Err(err).Str("path", path).Msg("disk-space poll failed")
							continue
						}
						if now == last {
							continue
						}
						last = now
						if now {
							observer.OnDiskSpaceAvailable()
						} else {
							observer.OnDiskSpaceNotAvailable()
						}
					case <-stop:
						return
					}
				}
			}()
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			if stop != nil {
				close(stop)
			}
			return pc, nil
		},
	}
}

// HealthHTTPExporterStep binds addr and serves monitor's aggregated
// health status at "/healthz" for the supervisor's lifetime. Only
// meaningful when addr is non-empty; callers omit this step from the
// bootstrap catalog entirely when no admin address is configured.
func HealthHTTPExporterStep(addr string, monitor *health.Monitor) startup.Step[*partition.PartitionContext] {
	logger := log.WithComponent("health-http-exporter")
	var srv *http.Server

	return startup.Step[*partition.PartitionContext]{
		Name: "health-http-exporter",
		Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			mux := http.NewServeMux()
			mux.Handle("/healthz", monitor.Handler())
			srv = &http.Server{Addr: addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error().Err(err).Str("addr", addr).Msg("health HTTP exporter stopped unexpectedly")
				}
			}()
			logger.Info().Str("addr", addr).Msg("health HTTP exporter listening")
			return pc, nil
		},
		Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
			if srv == nil {
				return pc, nil
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return pc, srv.Shutdown(shutdownCtx)
		},
	}
}
