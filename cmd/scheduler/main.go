/**
 * @description
 * This is the main entry point for the lease scheduler.
 * It is a non-HTTP, long-running process that triggers the lease service's
 * internal sweeps on a cron cadence.
 */
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/teknokapsul/lease-service/internal/config"
	"github.com/teknokapsul/lease-service/internal/scheduler"
	"github.com/teknokapsul/lease-service/pkg/leaseclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, reading environment")
	}

	cfg, err := config.LoadSchedulerConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	client := leaseclient.NewClient(cfg.LeaseServiceURL, cfg.InternalAPIKey)
	jobs := scheduler.NewJobs(client, logger)
	s := scheduler.NewScheduler(jobs, logger, *cfg)

	registered := s.Start()
	logger.Info("scheduler started", "jobs", registered)

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := s.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
