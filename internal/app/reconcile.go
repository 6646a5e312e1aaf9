package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teknokapsul/lease-service/internal/domain"
)

// reconcileConcurrency bounds parallel gateway lookups in the sweep.
const reconcileConcurrency = 4

// RunReconciliation re-checks recently paid invoices against the gateway
// so chargebacks and voids are noticed without a client poll.
func (s *Service) RunReconciliation(ctx context.Context) (domain.SweepResult, error) {
	var result domain.SweepResult
	since := s.now().Add(-s.settings.ReconcileLookback)

	invoices, err := s.repo.ListRecentlyPaidInvoices(ctx, since, s.settings.SweepBatchLimit)
	if err != nil {
		return result, fmt.Errorf("failed to list paid invoices: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for i := range invoices {
		invoice := &invoices[i]
		g.Go(func() error {
			outcome, err := s.reconcile(gctx, invoiceTarget(invoice), nil)

			mu.Lock()
			defer mu.Unlock()
			result.Evaluated++
			switch {
			case err != nil:
				result.Failed++
				log.Printf("level=warn component=reconciliation msg=\"invoice reconciliation failed\" invoice_id=%s err=%v", invoice.ID, err)
			case outcome.Changed:
				result.Succeeded++
				log.Printf("level=info component=reconciliation msg=\"invoice status changed\" invoice_id=%s status=%s", invoice.ID, outcome.Status)
			default:
				result.Skipped++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("reconciliation interrupted after %d invoices: %w", result.Evaluated, err)
	}
	return result, nil
}
