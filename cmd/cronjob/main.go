package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"propbooks-backend/internal/config"
	"propbooks-backend/internal/jobs"
	"propbooks-backend/internal/logger"
	"propbooks-backend/internal/repository/postgres"
	"propbooks-backend/internal/scheduler"
	"propbooks-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'generate-recurring-charges', 'all-nightly')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Propbooks Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Services
	postingService := service.NewPostingService(
		store.TransactionRepository,
		store.GLSettingsRepository,
		store.LeaseRepository,
	)

	chargeService := service.NewChargeService(
		store.ChargeRepository,
		store.TransactionRepository,
		store.LeaseRepository,
		store.GLSettingsRepository,
		postingService,
	)

	reversalService := service.NewReversalService(
		db,
		store.TransactionRepository,
		store.GLSettingsRepository,
		store.PolicyRepository,
		postingService,
	)

	recurringService := service.NewRecurringService(
		store.ChargeScheduleRepository,
		store.ChargeRepository,
		store.TransactionRepository,
		store.GLSettingsRepository,
		store.LeaseRepository,
		chargeService,
		postingService,
		service.LateFeeConfig{
			Percent:   decimal.NewFromFloat(cfg.Billing.LateFeePercent),
			Cap:       decimal.NewFromFloat(cfg.Billing.LateFeeCap),
			GraceDays: cfg.Billing.GraceDays,
		},
	)

	jobServices := &jobs.Services{
		Posting:   postingService,
		Recurring: recurringService,
		Charge:    chargeService,
		Reversal:  reversalService,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(db, store, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "generate-recurring-charges":
		jobRunner.GenerateRecurringCharges()
	case "post-late-fees":
		jobRunner.PostLateFees()
	case "all-nightly":
		jobRunner.RunAllNightlyJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - generate-recurring-charges\n")
		fmt.Printf("  - post-late-fees\n")
		fmt.Printf("  - all-nightly\n")
		os.Exit(1)
	}
}
