package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/teknokapsul/lease-service/internal/domain"
)

// MaxUpfrontMonths bounds an upfront offer to one invoice batch.
const MaxUpfrontMonths = InvoicesPerContract

// ProposeUpfrontOffer lets the landlord offer pre-payment of several months.
func (s *Service) ProposeUpfrontOffer(ctx context.Context, caller Caller, ownerUID, contractID string, months int, amount int64) (*domain.UpfrontOffer, error) {
	if months < 1 || months > MaxUpfrontMonths {
		return nil, fmt.Errorf("%w: months must be between 1 and %d", ErrInvalidInput, MaxUpfrontMonths)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return nil, err
	}
	if !contract.IsLandlord(caller.ID) {
		return nil, ErrForbidden
	}

	now := s.now()
	offer := domain.UpfrontOffer{
		ID:         uuid.NewString(),
		ContractID: contract.ID,
		OwnerID:    contract.OwnerID,
		Amount:     amount,
		Months:     months,
		Status:     domain.OfferStatusProposed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	s.notifyTenant(ctx, contract, "upfront_offer", "You have a new upfront payment offer", map[string]string{
		"months": fmt.Sprintf("%d", months),
	})
	return &offer, nil
}

// AcceptUpfrontOffer lets the tenant accept a proposed offer.
func (s *Service) AcceptUpfrontOffer(ctx context.Context, caller Caller, ownerUID, contractID, offerID string) (*domain.UpfrontOffer, error) {
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
	offer, err := s.repo.GetOffer(ctx, contract.ID, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != domain.OfferStatusProposed {
		return nil, fmt.Errorf("%w: offer is %s", ErrInvalidStatus, offer.Status)
	}

	changed, err := s.repo.AcceptOffer(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to accept offer: %w", err)
	}
	if !changed {
		return nil, fmt.Errorf("%w: offer is no longer open", ErrInvalidStatus)
	}
	offer.Status = domain.OfferStatusAccepted
	return offer, nil
}

// IssueGuestToken creates a new guest checkout token for the contract and
// returns it once. Only its hash is stored; a new token replaces the old.
func (s *Service) IssueGuestToken(ctx context.Context, caller Caller, ownerUID, contractID string) (string, error) {
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return "", err
	}
	if !contract.IsLandlord(caller.ID) {
		return "", ErrForbidden
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	if err := s.repo.SetGuestTokenHash(ctx, contract.ID, string(hash)); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	log.Printf("level=info component=guest msg=\"guest token issued\" contract_id=%s", contract.ID)
	return token, nil
}
