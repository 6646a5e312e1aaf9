package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/teknokapsul/lease-service/internal/domain"
)

// RunOverdueSweep flips DUE invoices past their due date to OVERDUE and
// opens a legal case stub for each. The case is upserted first so a failed
// status write is retried together with it on the next run.
func (s *Service) RunOverdueSweep(ctx context.Context) (domain.SweepResult, error) {
	var result domain.SweepResult
	now := s.now()

	invoices, err := s.repo.ListDueInvoicesPastDue(ctx, now, s.settings.SweepBatchLimit)
	if err != nil {
		return result, fmt.Errorf("failed to list past-due invoices: %w", err)
	}

	for _, invoice := range invoices {
		result.Evaluated++
		if invoice.Status != domain.InvoiceStatusDue || !invoice.DueDate.Before(now) {
			result.Skipped++
			continue
		}

		legalCase := domain.LegalCase{
			ID:         uuid.NewString(),
			InvoiceID:  invoice.ID,
			ContractID: invoice.ContractID,
			OwnerID:    invoice.OwnerID,
			Status:     domain.LegalCaseOpen,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.UpsertLegalCase(ctx, legalCase); err != nil {
			result.Failed++
			log.Printf("level=warn component=overdue msg=\"failed to open legal case\" invoice_id=%s err=%v", invoice.ID, err)
			continue
		}

		changed, err := s.repo.MarkInvoiceOverdue(ctx, invoice.ID)
		if err != nil {
			result.Failed++
			log.Printf("level=warn component=overdue msg=\"failed to mark invoice overdue\" invoice_id=%s err=%v", invoice.ID, err)
			continue
		}
		if !changed {
			result.Skipped++
			continue
		}

		s.publishEvent(ctx, "lease.invoice.overdue", map[string]interface{}{
			"invoice_id":  invoice.ID,
			"contract_id": invoice.ContractID,
			"owner_id":    invoice.OwnerID,
			"period":      invoice.Period,
			"due_date":    invoice.DueDate,
		})
		result.Succeeded++
	}
	return result, nil
}
