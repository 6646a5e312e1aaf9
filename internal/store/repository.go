/**
 * @description
 * PostgreSQL implementation of the lease engine's persistence layer.
 * Records are written with partial UPDATEs and INSERT ... ON CONFLICT
 * upserts keyed by id; status changes are conditional so concurrent
 * triggers agree on a single winner.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - internal/domain: domain models.
 */

package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teknokapsul/lease-service/internal/domain"
)

var (
	ErrContractNotFound = errors.New("contract not found")
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrOfferNotFound    = errors.New("upfront offer not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrStateConflict    = errors.New("record changed state concurrently")
)

// InvoiceCheckoutParams is what a checkout stores on an invoice.
type InvoiceCheckoutParams struct {
	Token               string
	TenantTotal         int64
	LandlordNet         int64
	PlatformRevenue     int64
	AgentRevenue        int64
	ChargedTotal        int64
	EarlyPaymentApplied bool
}

// PostgresRepository is the PostgreSQL-backed repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// sourceTable maps a payment target kind to its table, its column on
// lease_payouts and the column holding the landlord's share.
type sourceTable struct {
	table        string
	payoutColumn string
	amountColumn string
	notFound     error
}

var sourceTables = map[string]sourceTable{
	domain.SourceInvoice: {table: "lease_invoices", payoutColumn: "invoice_id", amountColumn: "landlord_net", notFound: ErrInvoiceNotFound},
	domain.SourceOffer:   {table: "lease_upfront_offers", payoutColumn: "offer_id", amountColumn: "amount", notFound: ErrOfferNotFound},
	domain.SourcePayment: {table: "lease_payments", payoutColumn: "payment_id", amountColumn: "landlord_amount", notFound: ErrPaymentNotFound},
}

func lookupSource(kind string) (sourceTable, error) {
	src, ok := sourceTables[kind]
	if !ok {
		return sourceTable{}, fmt.Errorf("unknown source kind %q", kind)
	}
	return src, nil
}
