package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/partitionkit/pkg/config"
	"github.com/cuemby/partitionkit/pkg/consensus"
	"github.com/cuemby/partitionkit/pkg/consensus/fakeconsensus"
	"github.com/cuemby/partitionkit/pkg/log"
	"github.com/cuemby/partitionkit/pkg/partition"
	"github.com/cuemby/partitionkit/pkg/partition/refcatalog"
	"github.com/cuemby/partitionkit/pkg/startup"
	"github.com/cuemby/partitionkit/pkg/storage"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "partitiond",
	Short:   "partitiond - run a single partition supervisor against an in-memory consensus stand-in",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("partitiond version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bootstrap a partition and drive it through leader/follower/inactive via a scripted demo",
	Long: `run wires a partition.Supervisor with the in-memory fakeconsensus
adapter, the reference step catalog, and the embedded metadata store, then
scripts the replica from inactive to leader, then follower, then back to
inactive to demonstrate correct bootstrap, role-transition, and shutdown
ordering. When the config sets admin_http_addr, the health HTTP exporter
is added to the bootstrap steps.

This is a demo, not a production entrypoint: the consensus layer is a
single-process stand-in with no networking, intended for manual
smoke-testing of the wiring order this library expects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		partitionIDFlag, _ := cmd.Flags().GetUint32("partition-id")
		configPath, _ := cmd.Flags().GetString("config")
		minFreeMB, _ := cmd.Flags().GetUint64("min-free-mb")
		diskPath, _ := cmd.Flags().GetString("disk-path")

		cfg := config.DefaultConfig()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}

		partitionID := partitionIDFlag
		if partitionID == 0 {
			partitionID = uuid.New().ID()
		}
		nodeID := uuid.New().ID()

		fmt.Println("Starting partitiond demo...")
		fmt.Printf("  Partition ID: %d\n", partitionID)
		fmt.Printf("  Node ID: %d\n", nodeID)
		fmt.Println()

		store, err := newMetadataStore(cfg.MetadataStorePath)
		if err != nil {
			return fmt.Errorf("open metadata store: %w", err)
		}
		defer store.Close()

		cons := fakeconsensus.New()

		pc := &partition.PartitionContext{
			PartitionID: partitionID,
			NodeID:      uint64(nodeID),
			Listeners:   []partition.PartitionListener{&demoListener{}},
		}

		// sv is referenced by the disk-space observer closure below, but
		// only populated once partition.New returns: DiskSpaceMonitorStep's
		// Open runs during Bootstrap, strictly after sv is assigned.
		var sv *partition.Supervisor
		observer := diskObserverFunc(func(available bool) {
			if available {
				sv.OnDiskSpaceAvailable()
			} else {
				sv.OnDiskSpaceNotAvailable()
			}
		})

		bootstrapSteps := []startup.Step[*partition.PartitionContext]{
			refcatalog.PartitionMetadataStep(store),
			refcatalog.DiskSpaceMonitorStep(diskPath, minFreeMB*1024*1024, 30*time.Second, observer),
		}
		if cfg.AdminHTTPAddr != "" {
			// The exporter serves sv's health monitor, which exists only once
			// partition.New returns, so the real step is built in Open.
			var exporter startup.Step[*partition.PartitionContext]
			bootstrapSteps = append(bootstrapSteps, startup.Step[*partition.PartitionContext]{
				Name: "health-http-exporter",
				Open: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
					exporter = refcatalog.HealthHTTPExporterStep(cfg.AdminHTTPAddr, sv.HealthMonitor())
					return exporter.Open(ctx, pc)
				},
				Close: func(ctx context.Context, pc *partition.PartitionContext) (*partition.PartitionContext, error) {
					return exporter.Close(ctx, pc)
				},
			})
		}

		sv = partition.New(cfg, pc, cons, store, bootstrapSteps, refcatalog.Catalogs())

		if cfg.AdminHTTPAddr != "" {
			fmt.Printf("  Admin HTTP: http://%s/healthz\n", cfg.AdminHTTPAddr)
		}

		ctx := context.Background()
		if _, err := sv.Bootstrap(ctx).Wait(ctx); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		fmt.Println("✓ Bootstrap complete (inactive)")

		fmt.Println("Scripting role changes: inactive -> leader -> follower -> inactive")
		cons.SetRole(consensus.RoleLeader, 1)
		fmt.Println("✓ Promoted to leader (term 1)")

		cons.SetRole(consensus.RoleFollower, 2)
		fmt.Println("✓ Demoted to follower (term 2)")

		cons.SetRole(consensus.RoleInactive, 2)
		fmt.Println("✓ Moved to inactive")

		fmt.Println()
		fmt.Println("partitiond is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		if _, err := sv.CloseAsync(ctx).Wait(ctx); err != nil {
			return fmt.Errorf("close: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	runCmd.Flags().Uint32("partition-id", 0, "Partition ID (random if 0)")
	runCmd.Flags().String("config", "", "Path to a YAML config manifest (optional)")
	runCmd.Flags().Uint64("min-free-mb", 64, "Minimum free disk space in MB before pausing processing")
	runCmd.Flags().String("disk-path", "/", "Path whose filesystem free space is monitored")
}

func newMetadataStore(path string) (storage.PartitionMetadataStore, error) {
	if path == "" {
		return storage.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create metadata store dir: %w", err)
	}
	db, err := storage.NewBoltStore(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

type demoListener struct{}

func (demoListener) OnBecomingLeader(ctx context.Context, partitionID uint32, term uint64, logStream partition.LogStream) error {
	fmt.Printf("  [listener] partition %d becoming leader at term %d\n", partitionID, term)
	return nil
}

func (demoListener) OnBecomingFollower(ctx context.Context, partitionID uint32, term uint64) error {
	fmt.Printf("  [listener] partition %d becoming follower at term %d\n", partitionID, term)
	return nil
}

func (demoListener) OnBecomingInactive(ctx context.Context, partitionID uint32, term uint64) error {
	fmt.Printf("  [listener] partition %d becoming inactive at term %d\n", partitionID, term)
	return nil
}

// diskObserverFunc adapts a plain func(bool) into a refcatalog.DiskSpaceObserver.
type diskObserverFunc func(available bool)

func (f diskObserverFunc) OnDiskSpaceAvailable()    { f(true) }
func (f diskObserverFunc) OnDiskSpaceNotAvailable() { f(false) }
