package main

import (
	"time"

	"cuentas/internal/cli"
	"cuentas/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	// Setup structured logging
	logger := cli.SetupLogger()

	logger.Info("Starting scheduled-worker")

	// Load and validate configuration
	cfg := cli.LoadAndValidateConfig(logger)

	// Initialize SQLite repository
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// Drafts created here never touch the mirror, so no AMQP client is
	// needed; posting the drafts later publishes the sync messages.
	processor := services.NewScheduleProcessor(sqliteRepo)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Scheduled transaction processor configured",
		"interval", cfg.ScheduleInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	// Run initial processing on startup
	logger.Info("Running initial schedule processing...")
	if count, err := processor.ProcessDueSchedules(ctx, time.Now()); err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete", "drafts_created", count)
	}

	// Periodic processing
	ticker := time.NewTicker(cfg.ScheduleInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Processing due scheduled transactions...")
				count, err := processor.ProcessDueSchedules(ctx, now)
				if err != nil {
					logger.Error("Periodic processing failed", "error", err)
				} else {
					logger.Info("Periodic processing complete",
						"drafts_created", count,
						"next_check", now.Add(cfg.ScheduleInterval).Format("15:04:05"))
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Scheduled-worker shutdown complete")
}
