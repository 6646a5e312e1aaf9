package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/internal/pricing"
)

// InvoicesPerContract is the size of the initial invoice batch.
const InvoicesPerContract = 12

var invoiceNamespace = uuid.MustParse("5b0f7c1e-3f8a-4b52-9a0e-6f2d1c9a7e41")

// BuildInvoiceSchedule derives the first year of monthly invoices for a
// contract. Due dates fall on the clamped pay-day in loc; a pay-day past
// the end of a month bills on that month's last day. If the start day is
// already past the pay-day the schedule begins the following month.
func BuildInvoiceSchedule(contract domain.LeaseContract, loc *time.Location, now time.Time) ([]domain.Invoice, error) {
	if contract.StartDate == nil {
		return nil, ErrMissingStartDate
	}
	if loc == nil {
		loc = time.UTC
	}

	start := contract.StartDate.In(loc)
	payDay := contract.ClampedPayDay()
	anchor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)
	if start.Day() > payDay {
		anchor = anchor.AddDate(0, 1, 0)
	}

	split := pricing.Calculate(contract.RentAmount, contract.HasAgent())
	invoices := make([]domain.Invoice, 0, InvoicesPerContract)
	for i := 0; i < InvoicesPerContract; i++ {
		month := anchor.AddDate(0, i, 0)
		day := payDay
		if last := daysInMonth(month); day > last {
			day = last
		}
		due := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, loc)
		period := due.Format("2006-01")

		invoices = append(invoices, domain.Invoice{
			ID:              uuid.NewSHA1(invoiceNamespace, []byte(contract.ID+"/"+period)).String(),
			ContractID:      contract.ID,
			OwnerID:         contract.OwnerID,
			Period:          period,
			DueDate:         due,
			RentBase:        contract.RentAmount,
			TenantTotal:     split.TenantTotal,
			LandlordNet:     split.LandlordNet,
			PlatformRevenue: split.PlatformRevenue,
			AgentRevenue:    split.AgentRevenue,
			Status:          domain.InvoiceStatusDue,
			LateFeeEnabled:  contract.LateFeeEnabled,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return invoices, nil
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// GenerateInvoices creates the initial invoice batch for one contract. A nil
// caller means the request came from the internal schedule.
func (s *Service) GenerateInvoices(ctx context.Context, caller *Caller, ownerUID, contractID string) (int, error) {
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return 0, err
	}
	if caller != nil {
		if err := authorizeParty(contract, *caller); err != nil {
			return 0, err
		}
	}
	return s.generateForContract(ctx, contract)
}

func (s *Service) generateForContract(ctx context.Context, contract *domain.LeaseContract) (int, error) {
	existing, err := s.repo.CountInvoices(ctx, contract.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	invoices, err := BuildInvoiceSchedule(*contract, s.loc, s.now())
	if err != nil {
		return 0, err
	}

	created, err := s.repo.InsertInvoices(ctx, invoices)
	if err != nil {
		return 0, fmt.Errorf("failed to insert invoices: %w", err)
	}
	if created > 0 {
		s.publishEvent(ctx, "lease.invoice.generated", map[string]interface{}{
			"contract_id":  contract.ID,
			"owner_id":     contract.OwnerID,
			"created":      created,
			"first_period": invoices[0].Period,
		})
	}
	return int(created), nil
}

// RunInvoiceGeneration creates invoice batches for billable contracts that
// have none yet.
func (s *Service) RunInvoiceGeneration(ctx context.Context) (domain.SweepResult, error) {
	var result domain.SweepResult
	contracts, err := s.repo.ListContractsAwaitingInvoices(ctx, s.settings.SweepBatchLimit)
	if err != nil {
		return result, fmt.Errorf("failed to list contracts: %w", err)
	}

	for i := range contracts {
		contract := &contracts[i]
		result.Evaluated++
		if !contract.IsBillable() {
			result.Skipped++
			continue
		}
		created, err := s.generateForContract(ctx, contract)
		if err != nil {
			result.Failed++
			log.Printf("level=warn component=invoices msg=\"invoice generation failed\" contract_id=%s err=%v", contract.ID, err)
			continue
		}
		if created == 0 {
			result.Skipped++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// ListInvoices returns a contract's invoices, oldest period first.
func (s *Service) ListInvoices(ctx context.Context, caller Caller, ownerUID, contractID string) ([]domain.Invoice, error) {
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(contract, caller); err != nil {
		return nil, err
	}
	return s.repo.ListInvoicesByContract(ctx, contract.ID)
}
