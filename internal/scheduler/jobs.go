/**
 * @description
 * Scheduled job implementations for the lease scheduler. Each job asks the
 * lease service to run one sweep over its internal API.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/teknokapsul/lease-service/pkg/leaseclient"
)

const jobTimeout = 10 * time.Minute

// LeaseClient defines the sweep endpoints of the lease service.
type LeaseClient interface {
	GenerateInvoices(ctx context.Context) (*leaseclient.SweepResult, error)
	MarkOverdue(ctx context.Context) (*leaseclient.SweepResult, error)
	RecomputeLateFees(ctx context.Context) (*leaseclient.SweepResult, error)
	PlanPayouts(ctx context.Context) (*leaseclient.SweepResult, error)
	RunRenewals(ctx context.Context) (*leaseclient.SweepResult, error)
	ReconcilePayments(ctx context.Context) (*leaseclient.SweepResult, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	client LeaseClient
	logger *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(client LeaseClient, logger *slog.Logger) *Jobs {
	return &Jobs{client: client, logger: logger}
}

// GenerateInvoices creates the invoice schedule for contracts that have none.
func (j *Jobs) GenerateInvoices() {
	j.run("invoice generation", j.client.GenerateInvoices)
}

// MarkOverdue flips past-due invoices to overdue and opens legal cases.
func (j *Jobs) MarkOverdue() {
	j.run("overdue", j.client.MarkOverdue)
}

// RecomputeLateFees refreshes late fees on overdue invoices.
func (j *Jobs) RecomputeLateFees() {
	j.run("late fee", j.client.RecomputeLateFees)
}

// PlanPayouts schedules landlord payouts for paid sources that have none.
func (j *Jobs) PlanPayouts() {
	j.run("payout", j.client.PlanPayouts)
}

// RunRenewals offers and activates anniversary rent increases.
func (j *Jobs) RunRenewals() {
	j.run("renewal", j.client.RunRenewals)
}

// ReconcilePayments re-checks recently paid invoices against the gateway.
func (j *Jobs) ReconcilePayments() {
	j.run("reconciliation", j.client.ReconcilePayments)
}

func (j *Jobs) run(name string, sweep func(ctx context.Context) (*leaseclient.SweepResult, error)) {
	j.logger.Info("starting lease job", "job", name)
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := sweep(ctx)
	if err != nil {
		j.logger.Error("lease job failed", "job", name, "error", err)
		return
	}

	j.logger.Info("lease job finished",
		"job", name,
		"evaluated", result.Evaluated,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
}
