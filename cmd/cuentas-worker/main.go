package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cuentas/internal/amqp"
	"cuentas/internal/backend"
	"cuentas/internal/cli"
	"cuentas/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	// Setup structured logging
	logger := cli.SetupLogger()

	logger.Info("Starting cuentas-worker")

	// Load and validate configuration
	cfg := cli.LoadAndValidateConfig(logger)

	// Initialize SQLite repository to read entries pending sync
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// Select the ledger mirror backend (memory, sheets or none)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror backend configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := backend.NewFactory(logger)
	result, err := factory.CreateMirror(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize mirror backend", "error", err, "backend", cfg.MirrorBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Mirror cleanup failed", "error", err)
			}
		}()
	}

	if result.Mirror == nil {
		logger.Info("Mirror disabled, nothing to sync - exiting")
		return
	}

	// Initialize AMQP client for consuming sync messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(sqliteRepo, result.Mirror, cfg.SyncBatchSize)

	// On startup, push any entries a previous run left pending
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
		// Don't exit - continue with normal operation
	}

	g, ctx := errgroup.WithContext(ctx)

	// Consume sync messages published when entries are posted or voided
	g.Go(func() error {
		return amqpClient.ConsumeEntrySync(ctx, func(msg *amqp.EntrySyncMessage) error {
			return syncWorker.HandleSyncMessage(ctx, msg)
		})
	})

	// Periodic sweep for entries whose messages were lost
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPendingEntries(ctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	})

	logger.Info("Worker running",
		"backend", cfg.MirrorBackend,
		"sync_interval", cfg.SyncInterval.String(),
		"batch_size", cfg.SyncBatchSize)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
