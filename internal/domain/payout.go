package domain

import "time"

// Payout statuses. PLANNED is terminal here; transfer execution happens elsewhere.
const (
	PayoutStatusPlanned = "PLANNED"
)

// Payout source kinds.
const (
	SourceInvoice = "invoice"
	SourceOffer   = "offer"
	SourcePayment = "payment"
)

// Payout is a scheduled transfer to a landlord.
type Payout struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	ContractID *string   `json:"contract_id,omitempty"`
	InvoiceID  *string   `json:"invoice_id,omitempty"`
	OfferID    *string   `json:"offer_id,omitempty"`
	PaymentID  *string   `json:"payment_id,omitempty"`
	Amount     int64     `json:"amount"`
	PlannedAt  time.Time `json:"planned_at"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ledger entry types.
const (
	LedgerPaymentReceived = "PAYMENT_RECEIVED"
	LedgerUpfrontPayment  = "UPFRONT_PAYMENT"
	LedgerDepositReceived = "DEPOSIT_RECEIVED"
	LedgerPaymentReversed = "PAYMENT_REVERSED"
)

// LedgerEntry is an append-only money event on a landlord wallet.
// Reference names the payment the entry belongs to, so a record paid again
// after a refund gets entries of its own.
type LedgerEntry struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	ContractID *string   `json:"contract_id,omitempty"`
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id"`
	EntryType  string    `json:"entry_type"`
	Reference  string    `json:"reference"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// Legal case statuses.
const (
	LegalCaseOpen   = "OPEN"
	LegalCaseClosed = "CLOSED"
)

// LegalCase tracks collection steps for an overdue invoice.
type LegalCase struct {
	ID                 string    `json:"id"`
	InvoiceID          string    `json:"invoice_id"`
	ContractID         string    `json:"contract_id"`
	OwnerID            string    `json:"owner_id"`
	Status             string    `json:"status"`
	NoticeSent         bool      `json:"notice_sent"`
	EnforcementStarted bool      `json:"enforcement_started"`
	EvictionFiled      bool      `json:"eviction_filed"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SweepResult summarizes one run of a scheduled sweep.
type SweepResult struct {
	Evaluated int `json:"evaluated"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
