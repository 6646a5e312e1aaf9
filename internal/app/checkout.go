package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/internal/pricing"
	"github.com/teknokapsul/lease-service/internal/store"
	"github.com/teknokapsul/lease-service/pkg/gatewayclient"
)

const guestCheckoutScope = "guest_checkout"

var depositNamespace = uuid.MustParse("0d8e3b4a-6c1f-4e0b-8f57-2a9c4d7e1b36")

// PaymentContext selects what a checkout pays for. It is one of
// InvoicePayment, GuestInvoicePayment, UpfrontOfferPayment, DepositPayment
// or IndependentPayment.
type PaymentContext interface {
	paymentContext()
}

// InvoicePayment pays a monthly invoice as a contract party.
type InvoicePayment struct {
	OwnerUID   string
	ContractID string
	InvoiceID  string
}

// GuestInvoicePayment pays a monthly invoice through a guest link.
type GuestInvoicePayment struct {
	ContractID string
	InvoiceID  string
	Token      string
}

// UpfrontOfferPayment pays an accepted multi-month offer.
type UpfrontOfferPayment struct {
	OwnerUID   string
	ContractID string
	OfferID    string
}

// DepositPayment pays the security deposit. A zero Amount uses the
// contract rent.
type DepositPayment struct {
	OwnerUID   string
	ContractID string
	Amount     int64
}

// IndependentPayment pays rent outside any contract on the platform.
type IndependentPayment struct {
	PaymentID  string
	RentAmount int64
}

func (InvoicePayment) paymentContext()      {}
func (GuestInvoicePayment) paymentContext() {}
func (UpfrontOfferPayment) paymentContext() {}
func (DepositPayment) paymentContext()      {}
func (IndependentPayment) paymentContext()  {}

// checkoutTarget is a resolved, authorized and priced checkout.
type checkoutTarget struct {
	kind         string
	id           string
	status       string
	buyer        gatewayclient.Buyer
	itemName     string
	amount       int64
	earlyPayment bool
	lateFee      int64
	persist      func(ctx context.Context, token string) error
}

// InitiateCheckout opens a hosted checkout for the given payment context
// and stores the returned token on the target record.
func (s *Service) InitiateCheckout(ctx context.Context, caller Caller, pc PaymentContext) (*domain.CheckoutSession, error) {
	var (
		target *checkoutTarget
		err    error
	)
	switch p := pc.(type) {
	case InvoicePayment:
		target, err = s.resolveInvoiceCheckout(ctx, caller, p)
	case GuestInvoicePayment:
		target, err = s.resolveGuestCheckout(ctx, p)
	case UpfrontOfferPayment:
		target, err = s.resolveOfferCheckout(ctx, caller, p)
	case DepositPayment:
		target, err = s.resolveDepositCheckout(ctx, caller, p)
	case IndependentPayment:
		target, err = s.resolveIndependentCheckout(ctx, caller, p)
	default:
		return nil, fmt.Errorf("%w: unsupported payment context", ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if target.amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	req := gatewayclient.CheckoutRequest{
		Locale:         "tr",
		ConversationID: conversationID(target.kind, target.id),
		Price:          gatewayclient.FormatAmount(target.amount),
		PaidPrice:      gatewayclient.FormatAmount(target.amount),
		Currency:       s.settings.Currency,
		BasketID:       target.id,
		PaymentGroup:   "PRODUCT",
		CallbackURL:    s.settings.CallbackURL,
		Buyer:          target.buyer,
		BasketItems: []gatewayclient.BasketItem{{
			ID:       target.id,
			Name:     target.itemName,
			Category: "Rent",
			ItemType: "VIRTUAL",
			Price:    gatewayclient.FormatAmount(target.amount),
		}},
	}

	gctx, cancel := s.gatewayContext(ctx)
	resp, err := s.gateway.CreateCheckout(gctx, req)
	cancel()
	if err != nil {
		log.Printf("level=warn component=checkout msg=\"gateway rejected checkout\" kind=%s id=%s err=%v", target.kind, target.id, err)
		return nil, gatewayError("create checkout", err)
	}

	if err := target.persist(ctx, resp.Token); err != nil {
		return nil, fmt.Errorf("failed to store checkout token: %w", err)
	}

	return &domain.CheckoutSession{
		Token:               resp.Token,
		CheckoutFormContent: resp.CheckoutFormContent,
		PaymentPageURL:      resp.PaymentPageURL,
		Amount:              target.amount,
		Currency:            s.settings.Currency,
		EarlyPaymentApplied: target.earlyPayment,
		LateFeeAmount:       target.lateFee,
	}, nil
}

func (s *Service) resolveInvoiceCheckout(ctx context.Context, caller Caller, p InvoicePayment) (*checkoutTarget, error) {
	contract, err := s.loadContract(ctx, p.OwnerUID, p.ContractID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(contract, caller); err != nil {
		return nil, err
	}
	invoice, err := s.repo.GetInvoice(ctx, contract.ID, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	buyer := tenantBuyer(contract, caller.ID)
	return s.invoiceCheckout(ctx, contract, invoice, buyer)
}

func (s *Service) resolveGuestCheckout(ctx context.Context, p GuestInvoicePayment) (*checkoutTarget, error) {
	if strings.TrimSpace(p.ContractID) == "" || strings.TrimSpace(p.Token) == "" {
		return nil, ErrInvalidInput
	}
	if err := s.consumeGuestAttempt(ctx, p.ContractID); err != nil {
		return nil, err
	}
	contract, err := s.repo.GetContract(ctx, p.ContractID)
	if err != nil {
		if errors.Is(err, store.ErrContractNotFound) {
			return nil, ErrInvalidGuestToken
		}
		return nil, err
	}
	if contract.GuestTokenHash == nil || *contract.GuestTokenHash == "" {
		return nil, ErrInvalidGuestToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*contract.GuestTokenHash), []byte(p.Token)); err != nil {
		return nil, ErrInvalidGuestToken
	}

	invoice, err := s.repo.GetInvoice(ctx, contract.ID, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	return s.invoiceCheckout(ctx, contract, invoice, tenantBuyer(contract, ""))
}

// consumeGuestAttempt counts a guest checkout attempt against the
// contract. It fails open when no limiter is configured or Redis errors.
func (s *Service) consumeGuestAttempt(ctx context.Context, contractID string) error {
	if s.limiter == nil || s.settings.GuestRateLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, guestCheckoutScope, contractID, s.settings.GuestRateLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=checkout msg=\"guest rate limit check failed\" contract_id=%s err=%v", contractID, err)
		return nil
	}
	if count > s.settings.GuestRateLimitPerMinute {
		return &RateLimitError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// invoiceCheckout prices an invoice for checkout. REFUNDED invoices are
// reset to DUE first so the old token cannot be reconciled again.
func (s *Service) invoiceCheckout(ctx context.Context, contract *domain.LeaseContract, invoice *domain.Invoice, buyer gatewayclient.Buyer) (*checkoutTarget, error) {
	switch invoice.Status {
	case domain.InvoiceStatusPaid:
		return nil, ErrAlreadyPaid
	case domain.InvoiceStatusClosedUpfront:
		return nil, fmt.Errorf("%w: invoice is covered by an upfront payment", ErrAlreadyPaid)
	case domain.InvoiceStatusRefunded:
		if err := s.repo.ResetRefunded(ctx, domain.SourceInvoice, invoice.ID); err != nil {
			return nil, fmt.Errorf("failed to reset refunded invoice: %w", err)
		}
		invoice.Status = domain.InvoiceStatusDue
		invoice.CheckoutToken = nil
		invoice.GatewayPaymentID = nil
	}

	quote := QuoteInvoice(*contract, *invoice, s.now(), s.loc)
	invoiceID := invoice.ID
	return &checkoutTarget{
		kind:         domain.SourceInvoice,
		id:           invoiceID,
		status:       invoice.Status,
		buyer:        buyer,
		itemName:     fmt.Sprintf("Rent %s", invoice.Period),
		amount:       quote.Amount,
		earlyPayment: quote.EarlyPaymentApplied,
		lateFee:      quote.LateFee,
		persist: func(ctx context.Context, token string) error {
			return s.repo.SaveInvoiceCheckout(ctx, invoiceID, store.InvoiceCheckoutParams{
				Token:               token,
				TenantTotal:         quote.Split.TenantTotal,
				LandlordNet:         quote.Split.LandlordNet,
				PlatformRevenue:     quote.Split.PlatformRevenue,
				AgentRevenue:        quote.Split.AgentRevenue,
				ChargedTotal:        quote.Amount,
				EarlyPaymentApplied: quote.EarlyPaymentApplied,
			})
		},
	}, nil
}

// InvoiceQuote is the amount a tenant is charged for an invoice at a
// given moment.
type InvoiceQuote struct {
	Split               pricing.Split
	LateFee             int64
	EarlyPaymentApplied bool
	Amount              int64
}

// QuoteInvoice prices an invoice at now. The stored split is kept when the
// invoice is locked or its tenant total already exceeds the rent base;
// otherwise it is recomputed. A checkout a week or more before the due
// date never carries a late fee.
func QuoteInvoice(contract domain.LeaseContract, invoice domain.Invoice, now time.Time, loc *time.Location) InvoiceQuote {
	split := pricing.Split{
		TenantTotal:     invoice.TenantTotal,
		LandlordNet:     invoice.LandlordNet,
		AgentRevenue:    invoice.AgentRevenue,
		PlatformRevenue: invoice.PlatformRevenue,
	}
	if !invoice.AmountLocked && invoice.TenantTotal <= invoice.RentBase {
		split = pricing.Calculate(invoice.RentBase, contract.HasAgent())
	}

	quote := InvoiceQuote{Split: split}
	switch {
	case pricing.IsEarlyPayment(invoice.DueDate, now):
		quote.EarlyPaymentApplied = true
	case now.After(invoice.DueDate) && invoice.LateFeeEnabled:
		quote.LateFee = pricing.AssessLateFee(invoice.RentBase, invoice.DueDate, now, loc).Amount
	}
	quote.Amount = split.TenantTotal + quote.LateFee
	return quote
}

func (s *Service) resolveOfferCheckout(ctx context.Context, caller Caller, p UpfrontOfferPayment) (*checkoutTarget, error) {
	contract, err := s.loadContract(ctx, p.OwnerUID, p.ContractID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(contract, caller); err != nil {
		return nil, err
	}
	offer, err := s.repo.GetOffer(ctx, contract.ID, p.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.Status == domain.OfferStatusPaid {
		return nil, ErrAlreadyPaid
	}
	if offer.Status != domain.OfferStatusAccepted {
		return nil, fmt.Errorf("%w: offer must be accepted before payment", ErrInvalidStatus)
	}

	offerID := offer.ID
	return &checkoutTarget{
		kind:     domain.SourceOffer,
		id:       offerID,
		status:   offer.Status,
		buyer:    tenantBuyer(contract, caller.ID),
		itemName: fmt.Sprintf("Upfront rent (%d months)", offer.Months),
		amount:   offer.Amount,
		persist: func(ctx context.Context, token string) error {
			return s.repo.SaveOfferCheckout(ctx, offerID, token)
		},
	}, nil
}

// DepositPaymentID is the stable id of a contract's deposit payment.
func DepositPaymentID(contractID string) string {
	return uuid.NewSHA1(depositNamespace, []byte(contractID)).String()
}

func (s *Service) resolveDepositCheckout(ctx context.Context, caller Caller, p DepositPayment) (*checkoutTarget, error) {
	if p.Amount < 0 {
		return nil, ErrInvalidInput
	}
	contract, err := s.loadContract(ctx, p.OwnerUID, p.ContractID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(contract, caller); err != nil {
		return nil, err
	}

	rent := p.Amount
	if rent == 0 {
		rent = contract.RentAmount
	}
	split := pricing.DepositSplit(rent)
	contractID := contract.ID
	now := s.now()
	payment, err := s.repo.UpsertStandalonePayment(ctx, domain.StandalonePayment{
		ID:              DepositPaymentID(contract.ID),
		OwnerID:         contract.OwnerID,
		ContractID:      &contractID,
		PayerID:         caller.ID,
		Type:            domain.PaymentTypeDeposit,
		RentBase:        rent,
		Amount:          split.TenantTotal,
		LandlordAmount:  split.LandlordNet,
		PlatformRevenue: split.PlatformRevenue,
		Status:          domain.InvoiceStatusDue,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store deposit: %w", err)
	}
	return s.standaloneCheckout(ctx, payment, tenantBuyer(contract, caller.ID), "Security deposit")
}

func (s *Service) resolveIndependentCheckout(ctx context.Context, caller Caller, p IndependentPayment) (*checkoutTarget, error) {
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(p.PaymentID); err != nil {
		return nil, fmt.Errorf("%w: payment id must be a UUID", ErrInvalidInput)
	}
	if p.RentAmount <= 0 {
		return nil, fmt.Errorf("%w: rent amount must be positive", ErrInvalidInput)
	}

	split := pricing.Calculate(p.RentAmount, false)
	now := s.now()
	payment, err := s.repo.UpsertStandalonePayment(ctx, domain.StandalonePayment{
		ID:              p.PaymentID,
		OwnerID:         caller.ID,
		PayerID:         caller.ID,
		Type:            domain.PaymentTypeIndependent,
		RentBase:        p.RentAmount,
		Amount:          split.TenantTotal,
		LandlordAmount:  split.LandlordNet,
		PlatformRevenue: split.PlatformRevenue,
		Status:          domain.InvoiceStatusDue,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}
	if payment.Type != domain.PaymentTypeIndependent || payment.PayerID != caller.ID {
		return nil, ErrForbidden
	}
	buyer := gatewayclient.Buyer{ID: caller.ID, Name: "Tenant", Surname: "Tenant", Email: caller.Email}
	return s.standaloneCheckout(ctx, payment, buyer, "Rent payment")
}

func (s *Service) standaloneCheckout(ctx context.Context, payment *domain.StandalonePayment, buyer gatewayclient.Buyer, itemName string) (*checkoutTarget, error) {
	switch payment.Status {
	case domain.InvoiceStatusPaid:
		return nil, ErrAlreadyPaid
	case domain.InvoiceStatusRefunded:
		if err := s.repo.ResetRefunded(ctx, domain.SourcePayment, payment.ID); err != nil {
			return nil, fmt.Errorf("failed to reset refunded payment: %w", err)
		}
		payment.Status = domain.InvoiceStatusDue
	}

	paymentID := payment.ID
	amount := payment.Amount
	return &checkoutTarget{
		kind:     domain.SourcePayment,
		id:       paymentID,
		status:   payment.Status,
		buyer:    buyer,
		itemName: itemName,
		amount:   amount,
		persist: func(ctx context.Context, token string) error {
			return s.repo.SavePaymentCheckout(ctx, paymentID, token, amount)
		},
	}, nil
}

// tenantBuyer builds the gateway buyer from the contract's tenant contact.
func tenantBuyer(contract *domain.LeaseContract, callerID string) gatewayclient.Buyer {
	name, surname := splitName(contract.Tenant.Name)
	id := callerID
	if id == "" {
		id = "tenant-" + contract.ID
	}
	buyer := gatewayclient.Buyer{
		ID:        id,
		Name:      name,
		Surname:   surname,
		Email:     contract.Tenant.Email,
		GSMNumber: contract.Tenant.Phone,
	}
	if contract.Tenant.NationalID != nil {
		buyer.IdentityNumber = *contract.Tenant.NationalID
	}
	return buyer
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "Tenant", "Tenant"
	case 1:
		return fields[0], fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
}
