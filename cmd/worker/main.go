package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/chefenplace/internal/database"
	"github.com/hugh/chefenplace/internal/tasks"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/pkg/config"
	"github.com/hugh/chefenplace/pkg/crypto"
	"github.com/hugh/chefenplace/pkg/queue"
	"github.com/hugh/chefenplace/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting Chef en Place worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	tenants := tenant.NewRegistry(db, encryptor, logger)
	handler := tasks.NewHandler(tenants, tasks.NewLogMailer(logger), cfg.App.FrontendURL, logger)

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)

	scheduler := queue.NewScheduler(&cfg.Redis)
	entryID, err := tasks.RegisterPeriodic(scheduler, cfg.Worker.TrialSweepCron, time.Now())
	if err != nil {
		logger.Error("failed to register periodic tasks", "error", err)
		os.Exit(1)
	}
	logger.Info("trial sweep scheduled", "cron", cfg.Worker.TrialSweepCron, "entry_id", entryID)

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
		cancel()
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
