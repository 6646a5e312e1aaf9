package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/internal/pricing"
)

// Renewal thresholds in whole months since the contract start.
const (
	RenewalOfferAfterMonths    = 11
	RenewalActivateAfterMonths = 12
)

// MonthsElapsed counts whole months from start to now in loc.
func MonthsElapsed(start, now time.Time, loc *time.Location) int {
	s := start.In(loc)
	n := now.In(loc)
	months := (n.Year()-s.Year())*12 + int(n.Month()) - int(s.Month())
	if n.Day() < s.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// RunRenewals offers the yearly rent increase to active contracts nearing
// their anniversary and activates increases the tenant accepted.
func (s *Service) RunRenewals(ctx context.Context) (domain.SweepResult, error) {
	var result domain.SweepResult
	now := s.now()
	offerBefore := now.AddDate(0, -RenewalOfferAfterMonths, 0)
	activateBefore := now.AddDate(0, -RenewalActivateAfterMonths, 0)

	contracts, err := s.repo.ListContractsDueForRenewal(ctx, offerBefore, activateBefore, s.settings.SweepBatchLimit)
	if err != nil {
		return result, fmt.Errorf("failed to list contracts for renewal: %w", err)
	}

	for i := range contracts {
		contract := &contracts[i]
		result.Evaluated++
		if contract.Status != domain.ContractStatusActive || contract.StartDate == nil {
			result.Skipped++
			continue
		}

		elapsed := MonthsElapsed(*contract.StartDate, now, s.loc)
		var (
			changed bool
			err     error
		)
		switch {
		case contract.Renewal == nil && elapsed >= RenewalOfferAfterMonths:
			changed, err = s.offerRenewal(ctx, contract, now)
		case contract.Renewal != nil && contract.Renewal.Status == domain.RenewalStatusAccepted && elapsed >= RenewalActivateAfterMonths:
			changed, err = s.activateRenewal(ctx, contract, now)
		}
		if err != nil {
			result.Failed++
			log.Printf("level=warn component=renewals msg=\"renewal step failed\" contract_id=%s err=%v", contract.ID, err)
			continue
		}
		if !changed {
			result.Skipped++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

func (s *Service) offerRenewal(ctx context.Context, contract *domain.LeaseContract, now time.Time) (bool, error) {
	renewal := domain.Renewal{
		Status:          domain.RenewalStatusOffered,
		IncreasePercent: pricing.RenewalIncreasePercent,
		NewRentAmount:   pricing.RenewalRent(contract.RentAmount, pricing.RenewalIncreasePercent),
		OfferedAt:       &now,
	}
	changed, err := s.repo.OfferRenewal(ctx, contract.ID, renewal)
	if err != nil || !changed {
		return changed, err
	}

	s.publishEvent(ctx, "lease.renewal.offered", map[string]interface{}{
		"contract_id":      contract.ID,
		"owner_id":         contract.OwnerID,
		"current_rent":     contract.RentAmount,
		"new_rent":         renewal.NewRentAmount,
		"increase_percent": renewal.IncreasePercent,
	})
	s.notifyTenant(ctx, contract, "renewal_offered", "Your lease renewal offer", map[string]string{
		"increase_percent": fmt.Sprintf("%d", renewal.IncreasePercent),
	})
	return true, nil
}

func (s *Service) activateRenewal(ctx context.Context, contract *domain.LeaseContract, now time.Time) (bool, error) {
	changed, err := s.repo.ActivateRenewal(ctx, contract.ID, contract.Renewal.NewRentAmount, now)
	if err != nil || !changed {
		return changed, err
	}
	s.publishEvent(ctx, "lease.renewal.activated", map[string]interface{}{
		"contract_id":   contract.ID,
		"owner_id":      contract.OwnerID,
		"previous_rent": contract.RentAmount,
		"new_rent":      contract.Renewal.NewRentAmount,
		"activated_at":  now,
	})
	return true, nil
}

// RespondToRenewal records the tenant's answer to an offered renewal.
func (s *Service) RespondToRenewal(ctx context.Context, caller Caller, ownerUID, contractID string, accept bool) (*domain.Renewal, error) {
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return nil, err
	}
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	if !contract.IsTenant(caller.Email) {
		return nil, ErrForbidden
	}
	if contract.Renewal == nil || contract.Renewal.Status != domain.RenewalStatusOffered {
		return nil, fmt.Errorf("%w: no open renewal offer", ErrInvalidStatus)
	}

	status := domain.RenewalStatusRejected
	if accept {
		status = domain.RenewalStatusAccepted
	}
	now := s.now()
	changed, err := s.repo.RespondToRenewal(ctx, contract.ID, status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record renewal response: %w", err)
	}
	if !changed {
		return nil, fmt.Errorf("%w: no open renewal offer", ErrInvalidStatus)
	}

	renewal := *contract.Renewal
	renewal.Status = status
	renewal.RespondedAt = &now
	return &renewal, nil
}
