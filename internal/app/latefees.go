package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/internal/pricing"
)

// RunLateFees recomputes the stored late fee of every overdue invoice with
// fees enabled. Values are overwritten, never accumulated.
func (s *Service) RunLateFees(ctx context.Context) (domain.SweepResult, error) {
	var result domain.SweepResult
	now := s.now()
	today := startOfDay(now, s.loc)

	invoices, err := s.repo.ListInvoicesForLateFees(ctx, today, s.settings.SweepBatchLimit)
	if err != nil {
		return result, fmt.Errorf("failed to list overdue invoices: %w", err)
	}

	for _, invoice := range invoices {
		result.Evaluated++
		if invoice.Status != domain.InvoiceStatusOverdue || !invoice.LateFeeEnabled {
			result.Skipped++
			continue
		}
		fee := pricing.AssessLateFee(invoice.RentBase, invoice.DueDate, now, s.loc)
		if err := s.repo.UpdateInvoiceLateFee(ctx, invoice.ID, fee.LateDays, fee.Amount, today); err != nil {
			result.Failed++
			log.Printf("level=warn component=late_fees msg=\"failed to store late fee\" invoice_id=%s err=%v", invoice.ID, err)
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
