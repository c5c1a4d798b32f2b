package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cuentas/internal/amqp"
	"cuentas/internal/cli"
	"cuentas/internal/core"
	apphttp "cuentas/internal/http"
	"cuentas/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	// Setup structured logging
	logger := cli.SetupLogger()

	// Load and validate configuration
	cfg := cli.LoadAndValidateConfig(logger)

	// Initialize SQLite repository (runs migrations)
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// First-boot bootstrap: admin user and a default company. Both are
	// no-ops once the rows exist, so restarts are safe.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := sqliteRepo.EnsureAdmin(bootCtx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logger.Error("Failed to bootstrap admin user", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("Admin user created", "email", cfg.AdminEmail)
		}
	} else {
		logger.Info("No admin credentials configured - skipping admin bootstrap")
	}

	companies, err := sqliteRepo.ListCompanies(bootCtx)
	if err != nil {
		logger.Error("Failed to list companies", "error", err)
		os.Exit(1)
	}
	if len(companies) == 0 {
		company, err := sqliteRepo.CreateCompany(bootCtx, core.Company{
			Code:   "principal",
			Name:   "Empresa principal",
			Active: true,
		})
		if err != nil {
			logger.Error("Failed to create default company", "error", err)
			os.Exit(1)
		}
		logger.Info("Default company created", "company_id", company.ID, "code", company.Code)
	}
	bootCancel()

	// Initialize AMQP client for publishing sync messages (optional).
	// Without it posted entries wait for the sync worker's periodic sweep.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync messages", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - posted entries sync on the worker sweep only")
	}

	entryService := services.NewEntryService(sqliteRepo, amqpClient)
	budgetService := services.NewBudgetService(sqliteRepo)

	srv := apphttp.NewServer(":"+cfg.Port, sqliteRepo, entryService, budgetService, cfg.SessionTTL)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting cuentas server", "port", cfg.Port, "session_ttl", cfg.SessionTTL.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
