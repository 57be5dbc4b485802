package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/volunteerhub/services/signup/api"
	"example.com/volunteerhub/services/signup/config"
	"example.com/volunteerhub/services/signup/internal/database"
	"example.com/volunteerhub/services/signup/internal/kvstore"
	"example.com/volunteerhub/services/signup/internal/messaging"
	"example.com/volunteerhub/services/signup/internal/repository"
	"example.com/volunteerhub/services/signup/internal/search"
	"example.com/volunteerhub/services/signup/internal/service"
	"example.com/volunteerhub/services/signup/internal/store"
	"example.com/volunteerhub/services/signup/internal/telemetry"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Serve command flags
	disableNewRelic bool
	serverPort      int
	gracefulTimeout int
	skipMigrations  bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Starts the signup service API server that handles volunteer
opportunities, registrations and capacity tracking.

The server respects the configuration in config.yaml or specified via the --config flag.
It will gracefully shut down on receiving SIGINT or SIGTERM signals.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&disableNewRelic, "disable-newrelic", false, "Disable New Relic monitoring")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "Server port (overrides config file)")
	serveCmd.Flags().IntVar(&gracefulTimeout, "graceful-timeout", 30, "Graceful shutdown timeout in seconds")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Skip schema migrations at startup")
}

// startServer initializes and starts the API server
func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}

	log.WithFields(logrus.Fields{
		"port":             cfg.Server.Port,
		"newrelic_enabled": cfg.NewRelic.Enabled && !disableNewRelic,
	}).Info("Initializing service components...")

	db := connectWithRetry(cfg.Database)
	defer func() {
		log.Info("Closing database connection...")
		if err := db.Close(); err != nil {
			log.WithField("error", err.Error()).Error("Error closing database connection")
		}
	}()

	if !skipMigrations {
		log.Info("Running schema migrations...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	log.Info("Connecting to Redis...")
	kv, err := kvstore.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		log.Info("Closing Redis connection...")
		if err := kv.Close(); err != nil {
			log.WithField("error", err.Error()).Error("Error closing Redis connection")
		}
	}()

	log.Info("Connecting to message broker...")
	bus, err := messaging.NewServiceBusClient(cfg.ServiceBus, "signup-service")
	if err != nil {
		log.Fatalf("Failed to connect to message broker: %v", err)
	}
	defer func() {
		log.Info("Closing messaging connection...")
		if err := bus.Close(); err != nil {
			log.WithField("error", err.Error()).Error("Error closing messaging connection")
		}
	}()

	es, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warnf("Failed to initialize search index client: %v", err)
	}

	nrConfig := cfg.NewRelic
	if disableNewRelic {
		nrConfig.Enabled = false
	}
	nrApp, err := telemetry.InitNewRelic(nrConfig)
	if err != nil {
		log.Warnf("Failed to initialize New Relic: %v", err)
	}

	log.Info("Initializing service layer...")
	repo := repository.NewRepository(db)
	fallback := store.NewFallbackRepository(kv)
	svc := service.NewSignupService(repo, fallback, kv, bus, es)

	log.Info("Initializing API server...")
	server := api.NewServer(cfg, log, nrApp, svc)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-stop
	log.Infof("Received signal %s, shutting down gracefully...", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(gracefulTimeout)*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server...")
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}

	log.Info("Server shutdown complete")
}

// connectWithRetry dials the database with exponential backoff.
func connectWithRetry(cfg config.DatabaseConfig) database.DB {
	var (
		db  database.DB
		err error
	)
	maxRetries := 5
	retryInterval := time.Second

	for i := 0; i < maxRetries; i++ {
		log.WithField("attempt", i+1).Info("Connecting to database...")
		db, err = database.Connect(cfg)
		if err == nil {
			log.Info("Successfully connected to database")
			return db
		}

		log.WithFields(logrus.Fields{
			"error":         err.Error(),
			"retry_attempt": i + 1,
			"max_retries":   maxRetries,
		}).Error("Failed to connect to database, retrying...")

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}

	log.Fatalf("Failed to connect to database after %d attempts: %v", maxRetries, err)
	return nil
}
