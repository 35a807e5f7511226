package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/trading-iam/internal/auth"
	authPostgres "github.com/frahmantamala/trading-iam/internal/auth/postgres"
	"github.com/frahmantamala/trading-iam/internal/core/events"
	"github.com/frahmantamala/trading-iam/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers: the session expiry sweep and the audit event listener.`,
}

var sessionWorkerCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Start the session expiry sweep",
	Long:  `Periodically deletes login sessions whose refresh tokens have expired.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSessionWorker()
	},
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start the audit event listener",
	Long:  `Subscribes to IAM audit events and logs them.`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

func startSessionWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	lg := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init db: %v\n", err)
		os.Exit(1)
	}
	gormDB, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init gorm: %v\n", err)
		os.Exit(1)
	}

	sessions := auth.NewSessionService(authPostgres.NewSessionRepository(gormDB), nil, lg)

	ctx, cancel := context.WithCancel(context.Background())
	go runSessionSweep(ctx, sessions, config.Session.SweepInterval, lg)

	lg.Info("session worker is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("received signal, shutting down session worker", "signal", sig)
	cancel()

	if err := db.Close(); err != nil {
		lg.Error("database close error", "error", err)
	}
}

func startEventWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	lg := logger.L()

	eventBus := events.NewEventBus(lg)

	auditEvents := []string{
		events.EventTypeUserLoggedIn,
		events.EventTypeSessionRevoked,
		events.EventTypeRoleAssigned,
		events.EventTypeRoleRevoked,
		events.EventTypePermissionGranted,
		events.EventTypePermissionRevoked,
	}
	for _, eventType := range auditEvents {
		eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			lg.Info("audit event",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"payload", event.Payload())
			return nil
		})
	}

	lg.Info("audit event listener started. Waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("received signal, shutting down event listener", "signal", sig)
}

func init() {
	workerCmd.AddCommand(sessionWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
