package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/teknokapsul/lease-service/internal/calendar"
	"github.com/teknokapsul/lease-service/internal/domain"
)

// PayoutDelayDays is the calendar delay between payment and payout.
const PayoutDelayDays = 8

// PlanPayoutDate returns the business day a payout for a payment made at
// paidAt is scheduled on.
func PlanPayoutDate(paidAt time.Time, loc *time.Location, holidays calendar.Holidays) (time.Time, error) {
	local := paidAt.In(loc)
	raw := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, PayoutDelayDays)
	return calendar.NextBusinessDay(raw, holidays)
}

// settlePaid plans the payout and writes the ledger entry for a PAID
// target. Both writes are idempotent, so it is safe to repeat.
func (s *Service) settlePaid(ctx context.Context, target *paymentTarget) error {
	if target.payoutAmount <= 0 {
		return nil
	}
	paidAt := s.now()
	if target.paidAt != nil {
		paidAt = *target.paidAt
	}

	if !target.payoutPlanned {
		if err := s.planPayout(ctx, target, paidAt); err != nil {
			return err
		}
	}

	entry := domain.LedgerEntry{
		ID:         uuid.NewString(),
		OwnerID:    target.ownerID,
		ContractID: target.contractID,
		SourceType: target.kind,
		SourceID:   target.id,
		EntryType:  target.ledgerType,
		Reference:  ledgerReference(target, paidAt),
		Amount:     target.payoutAmount,
		CreatedAt:  s.now(),
	}
	if err := s.repo.AppendLedgerEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// reverseLedger writes the negating entry for the payment a PAID target is
// losing. It must run on the target as loaded before the status change.
func (s *Service) reverseLedger(ctx context.Context, target *paymentTarget) error {
	if target.status != domain.InvoiceStatusPaid || target.payoutAmount <= 0 {
		return nil
	}
	paidAt := s.now()
	if target.paidAt != nil {
		paidAt = *target.paidAt
	}
	entry := domain.LedgerEntry{
		ID:         uuid.NewString(),
		OwnerID:    target.ownerID,
		ContractID: target.contractID,
		SourceType: target.kind,
		SourceID:   target.id,
		EntryType:  domain.LedgerPaymentReversed,
		Reference:  ledgerReference(target, paidAt),
		Amount:     -target.payoutAmount,
		CreatedAt:  s.now(),
	}
	if err := s.repo.AppendLedgerEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to append ledger reversal: %w", err)
	}
	return nil
}

// ledgerReference identifies one payment of a record: the checkout it went
// through and the second it was marked paid. Postgres keeps paid_at to the
// microsecond, so whole seconds compare equal before and after a reload.
func ledgerReference(target *paymentTarget, paidAt time.Time) string {
	checkout := "manual"
	if target.checkoutToken != nil && *target.checkoutToken != "" {
		checkout = *target.checkoutToken
	}
	return fmt.Sprintf("%s@%d", checkout, paidAt.Unix())
}

func (s *Service) planPayout(ctx context.Context, target *paymentTarget, paidAt time.Time) error {
	dates, err := s.repo.ListHolidays(ctx, target.ownerID)
	if err != nil {
		return fmt.Errorf("failed to load holidays: %w", err)
	}
	plannedAt, err := PlanPayoutDate(paidAt, s.loc, calendar.NewHolidays(dates...))
	if err != nil {
		return err
	}

	payout := domain.Payout{
		ID:         uuid.NewString(),
		OwnerID:    target.ownerID,
		ContractID: target.contractID,
		Amount:     target.payoutAmount,
		PlannedAt:  plannedAt,
		Status:     domain.PayoutStatusPlanned,
		CreatedAt:  s.now(),
	}
	sourceID := target.id
	switch target.kind {
	case domain.SourceInvoice:
		payout.InvoiceID = &sourceID
	case domain.SourceOffer:
		payout.OfferID = &sourceID
	case domain.SourcePayment:
		payout.PaymentID = &sourceID
	}

	created, err := s.repo.PlanPayout(ctx, target.kind, target.id, payout)
	if err != nil {
		return fmt.Errorf("failed to plan payout: %w", err)
	}
	target.payoutPlanned = true
	if !created {
		return nil
	}

	s.publishEvent(ctx, "lease.payout.planned", map[string]interface{}{
		"payout_id":   payout.ID,
		"owner_id":    payout.OwnerID,
		"contract_id": payout.ContractID,
		"source_type": target.kind,
		"source_id":   target.id,
		"amount":      payout.Amount,
		"planned_at":  payout.PlannedAt.Format("2006-01-02"),
	})
	return nil
}

// RunPayoutSweep plans payouts for paid records whose payout was never
// planned, e.g. after a crash between the status write and the payout.
func (s *Service) RunPayoutSweep(ctx context.Context) (domain.SweepResult, error) {
	var result domain.SweepResult
	for _, kind := range []string{domain.SourceInvoice, domain.SourceOffer, domain.SourcePayment} {
		ids, err := s.repo.ListPaidWithoutPayout(ctx, kind, s.settings.SweepBatchLimit)
		if err != nil {
			return result, fmt.Errorf("failed to list paid %s records: %w", kind, err)
		}
		for _, id := range ids {
			result.Evaluated++
			target, err := s.loadTarget(ctx, kind, id)
			if err != nil {
				result.Failed++
				log.Printf("level=warn component=payouts msg=\"failed to load paid record\" kind=%s id=%s err=%v", kind, id, err)
				continue
			}
			if target.payoutPlanned || target.payoutAmount <= 0 {
				result.Skipped++
				continue
			}
			if err := s.settlePaid(ctx, target); err != nil {
				result.Failed++
				log.Printf("level=warn component=payouts msg=\"failed to plan payout\" kind=%s id=%s err=%v", kind, id, err)
				if err := s.repo.DeferPayout(ctx, kind, id); err != nil {
					log.Printf("level=warn component=payouts msg=\"failed to defer payout\" kind=%s id=%s err=%v", kind, id, err)
				}
				continue
			}
			result.Succeeded++
		}
	}
	return result, nil
}
