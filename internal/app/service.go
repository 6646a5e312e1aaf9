/**
 * @description
 * Core business logic for lease invoicing and payments.
 */
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/internal/store"
	"github.com/teknokapsul/lease-service/pkg/gatewayclient"
)

// Repository defines the persistence operations the service needs.
type Repository interface {
	GetContract(ctx context.Context, contractID string) (*domain.LeaseContract, error)
	ListContractsAwaitingInvoices(ctx context.Context, limit int) ([]domain.LeaseContract, error)
	ListContractsDueForRenewal(ctx context.Context, offerStartedBefore, activateStartedBefore time.Time, limit int) ([]domain.LeaseContract, error)
	OfferRenewal(ctx context.Context, contractID string, renewal domain.Renewal) (bool, error)
	RespondToRenewal(ctx context.Context, contractID, status string, respondedAt time.Time) (bool, error)
	ActivateRenewal(ctx context.Context, contractID string, newRent int64, activatedAt time.Time) (bool, error)
	SetGuestTokenHash(ctx context.Context, contractID, hash string) error
	ListHolidays(ctx context.Context, ownerID string) ([]time.Time, error)

	CountInvoices(ctx context.Context, contractID string) (int, error)
	InsertInvoices(ctx context.Context, invoices []domain.Invoice) (int64, error)
	GetInvoice(ctx context.Context, contractID, invoiceID string) (*domain.Invoice, error)
	GetInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	FindInvoiceByCheckoutToken(ctx context.Context, token string) (*domain.Invoice, error)
	ListInvoicesByContract(ctx context.Context, contractID string) ([]domain.Invoice, error)
	SaveInvoiceCheckout(ctx context.Context, invoiceID string, params store.InvoiceCheckoutParams) error
	CloseOpenInvoices(ctx context.Context, contractID string, months int) (int64, error)
	ListDueInvoicesPastDue(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error)
	MarkInvoiceOverdue(ctx context.Context, invoiceID string) (bool, error)
	UpsertLegalCase(ctx context.Context, legalCase domain.LegalCase) error
	ListInvoicesForLateFees(ctx context.Context, assessedOn time.Time, limit int) ([]domain.Invoice, error)
	UpdateInvoiceLateFee(ctx context.Context, invoiceID string, lateDays int, amount int64, assessedOn time.Time) error
	ListRecentlyPaidInvoices(ctx context.Context, since time.Time, limit int) ([]domain.Invoice, error)
	SetInvoiceStatus(ctx context.Context, invoiceID, status string, paidAt *time.Time) error

	CreateOffer(ctx context.Context, offer domain.UpfrontOffer) error
	GetOffer(ctx context.Context, contractID, offerID string) (*domain.UpfrontOffer, error)
	GetOfferByID(ctx context.Context, offerID string) (*domain.UpfrontOffer, error)
	FindOfferByCheckoutToken(ctx context.Context, token string) (*domain.UpfrontOffer, error)
	AcceptOffer(ctx context.Context, offerID string) (bool, error)
	SaveOfferCheckout(ctx context.Context, offerID, token string) error

	UpsertStandalonePayment(ctx context.Context, payment domain.StandalonePayment) (*domain.StandalonePayment, error)
	GetStandalonePayment(ctx context.Context, paymentID string) (*domain.StandalonePayment, error)
	FindStandalonePaymentByCheckoutToken(ctx context.Context, token string) (*domain.StandalonePayment, error)
	SavePaymentCheckout(ctx context.Context, paymentID, token string, amount int64) error

	ResetRefunded(ctx context.Context, kind, id string) error
	SetGatewayPaymentID(ctx context.Context, kind, id, paymentID string) error
	TransitionStatus(ctx context.Context, kind, id, status string, paidAt *time.Time) (bool, error)
	MarkRefunded(ctx context.Context, kind, id string) error
	ListPaidWithoutPayout(ctx context.Context, kind string, limit int) ([]string, error)
	DeferPayout(ctx context.Context, kind, id string) error

	PlanPayout(ctx context.Context, kind, sourceID string, payout domain.Payout) (bool, error)
	DeletePayoutForSource(ctx context.Context, kind, sourceID string) error
	AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error
}

// PaymentGateway defines the hosted-checkout operations the service uses.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req gatewayclient.CheckoutRequest) (*gatewayclient.CheckoutResponse, error)
	RetrieveCheckout(ctx context.Context, token string) (*gatewayclient.CheckoutResult, error)
	RetrievePayment(ctx context.Context, paymentID string) (*gatewayclient.Payment, error)
	Refund(ctx context.Context, req gatewayclient.RefundRequest) (*gatewayclient.RefundResponse, error)
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RateLimiter counts attempts per scope and subject inside a window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Settings carries the configuration the service needs at construction.
type Settings struct {
	Timezone                string
	Currency                string
	CallbackURL             string
	EventsExchange          string
	AdminIDs                []string
	GuestRateLimitPerMinute int
	SweepBatchLimit         int
	ReconcileLookback       time.Duration
	GatewayTimeout          time.Duration
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID    string
	Email string
}

// Service provides the business logic for the lease payment lifecycle.
type Service struct {
	repo      Repository
	gateway   PaymentGateway
	publisher EventPublisher
	limiter   RateLimiter
	settings  Settings
	admins    map[string]bool
	loc       *time.Location
	now       func() time.Time
	inflight  singleflight.Group
}

// NewService creates a new lease service. limiter may be nil.
func NewService(repo Repository, gateway PaymentGateway, publisher EventPublisher, limiter RateLimiter, settings Settings) *Service {
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		log.Printf("level=warn component=service msg=\"invalid timezone, defaulting to UTC\" timezone=%q", settings.Timezone)
		loc = time.UTC
	}
	if settings.Currency == "" {
		settings.Currency = "TRY"
	}
	if settings.EventsExchange == "" {
		settings.EventsExchange = "lease.events"
	}
	if settings.SweepBatchLimit <= 0 {
		settings.SweepBatchLimit = 200
	}
	if settings.ReconcileLookback <= 0 {
		settings.ReconcileLookback = 14 * 24 * time.Hour
	}
	if settings.GatewayTimeout <= 0 {
		settings.GatewayTimeout = 30 * time.Second
	}

	admins := make(map[string]bool, len(settings.AdminIDs))
	for _, id := range settings.AdminIDs {
		admins[strings.TrimSpace(id)] = true
	}

	return &Service{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		limiter:   limiter,
		settings:  settings,
		admins:    admins,
		loc:       loc,
		now:       time.Now,
	}
}

// IsAdmin reports whether the caller may use admin operations.
func (s *Service) IsAdmin(caller Caller) bool {
	return caller.ID != "" && s.admins[caller.ID]
}

// loadContract fetches a contract and checks it belongs to ownerUID.
func (s *Service) loadContract(ctx context.Context, ownerUID, contractID string) (*domain.LeaseContract, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, ErrInvalidInput
	}
	contract, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if ownerUID != "" && contract.OwnerID != ownerUID {
		return nil, store.ErrContractNotFound
	}
	return contract, nil
}

// authorizeParty allows the landlord or the tenant of the contract.
func authorizeParty(contract *domain.LeaseContract, caller Caller) error {
	if caller.ID == "" {
		return ErrUnauthenticated
	}
	if contract.IsLandlord(caller.ID) || contract.IsTenant(caller.Email) {
		return nil
	}
	return ErrForbidden
}

func (s *Service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.settings.GatewayTimeout)
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.settings.EventsExchange, routingKey, payload); err != nil {
		log.Printf("level=warn component=events msg=\"failed to publish event\" routing_key=%s err=%v", routingKey, err)
	}
}

type notificationMessage struct {
	To         string            `json:"to"`
	Name       string            `json:"name,omitempty"`
	Template   string            `json:"template"`
	Subject    string            `json:"subject"`
	Data       map[string]string `json:"data,omitempty"`
	ContractID string            `json:"contract_id"`
	Timestamp  time.Time         `json:"timestamp"`
}

// notifyTenant hands a message to the notification pipeline. Delivery is
// fire-and-forget.
func (s *Service) notifyTenant(ctx context.Context, contract *domain.LeaseContract, template, subject string, data map[string]string) {
	if contract == nil || strings.TrimSpace(contract.Tenant.Email) == "" {
		return
	}
	s.publishEvent(ctx, "notification.email", notificationMessage{
		To:         contract.Tenant.Email,
		Name:       contract.Tenant.Name,
		Template:   template,
		Subject:    subject,
		Data:       data,
		ContractID: contract.ID,
		Timestamp:  s.now(),
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrContractNotFound) ||
		errors.Is(err, store.ErrInvoiceNotFound) ||
		errors.Is(err, store.ErrOfferNotFound) ||
		errors.Is(err, store.ErrPaymentNotFound)
}
