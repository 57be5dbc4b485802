package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/volunteerhub/services/signup/config"
	"example.com/volunteerhub/services/signup/internal/kvstore"
	"example.com/volunteerhub/services/signup/internal/messaging"
	"example.com/volunteerhub/services/signup/internal/repository"
	"example.com/volunteerhub/services/signup/internal/service"
	"example.com/volunteerhub/services/signup/internal/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	snapshotInterval time.Duration
	mirrorInterval   time.Duration
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that refreshes the cached stats snapshot
and repairs the fallback store mirror.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().DurationVar(&snapshotInterval, "snapshot-interval", time.Minute, "Interval between stats snapshot refreshes")
	workerCmd.Flags().DurationVar(&mirrorInterval, "mirror-interval", 5*time.Minute, "Interval between mirror repair runs")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db := connectWithRetry(cfg.Database)
	defer db.Close()

	kv, err := kvstore.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer kv.Close()

	bus, err := messaging.NewServiceBusClient(cfg.ServiceBus, "signup-worker")
	if err != nil {
		return err
	}
	defer bus.Close()

	repo := repository.NewRepository(db)
	fallback := store.NewFallbackRepository(kv)
	svc := service.NewSignupService(repo, fallback, kv, bus, nil)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting background jobs")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(snapshotInterval),
			gocron.NewTask(func() {
				if _, err := svc.RefreshStatsSnapshot(ctx); err != nil {
					log.WithError(err).Error("Failed to refresh stats snapshot")
				}
			}),
		)
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(mirrorInterval),
			gocron.NewTask(func() {
				if err := svc.SyncMirror(ctx); err != nil {
					log.WithError(err).Error("Failed to repair fallback mirror")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Worker error")
		return err
	}

	log.Info("Worker shutting down gracefully")
	return nil
}
