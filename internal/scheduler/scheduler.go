/**
 * @description
 * Cron scheduler setup for the lease sweeps.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teknokapsul/lease-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.SchedulerConfig
}

// NewScheduler creates a new scheduler instance. Schedules are evaluated in
// the configured business timezone.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.SchedulerConfig) *Scheduler {
	loc, err := time.LoadLocation(cfg.CronTimezone)
	if err != nil {
		logger.Warn("invalid cron timezone, defaulting to UTC", "timezone", cfg.CronTimezone, "error", err)
		loc = time.UTC
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. It returns the
// number of jobs that were registered.
func (s *Scheduler) Start() int {
	entries := []struct {
		name     string
		schedule string
		job      func()
	}{
		{"invoice generation", s.config.InvoiceJobSchedule, s.jobs.GenerateInvoices},
		{"overdue", s.config.OverdueJobSchedule, s.jobs.MarkOverdue},
		{"late fee", s.config.LateFeeJobSchedule, s.jobs.RecomputeLateFees},
		{"payout", s.config.PayoutJobSchedule, s.jobs.PlanPayouts},
		{"renewal", s.config.RenewalJobSchedule, s.jobs.RunRenewals},
		{"reconciliation", s.config.ReconcileJobSchedule, s.jobs.ReconcilePayments},
	}

	registered := 0
	for _, entry := range entries {
		if _, err := s.cron.AddFunc(entry.schedule, entry.job); err != nil {
			s.logger.Error("failed to schedule lease job", "job", entry.name, "schedule", entry.schedule, "error", err)
			continue
		}
		registered++
		s.logger.Info("scheduled lease job", "job", entry.name, "schedule", entry.schedule)
	}

	s.cron.Start()
	return registered
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
