package domain

import "time"

// Upfront offer statuses.
const (
	OfferStatusProposed = "PROPOSED"
	OfferStatusAccepted = "ACCEPTED"
	OfferStatusPaid     = "PAID"
)

// UpfrontOffer proposes paying several future months in one payment.
type UpfrontOffer struct {
	ID               string     `json:"id"`
	ContractID       string     `json:"contract_id"`
	OwnerID          string     `json:"owner_id"`
	Amount           int64      `json:"amount"`
	Months           int        `json:"months"`
	Status           string     `json:"status"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CheckoutToken    *string    `json:"checkout_token,omitempty"`
	GatewayPaymentID *string    `json:"gateway_payment_id,omitempty"`
	PayoutPlanned    bool       `json:"payout_planned"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Standalone payment types.
const (
	PaymentTypeDeposit     = "DEPOSIT"
	PaymentTypeIndependent = "INDEPENDENT"
)

// StandalonePayment is a payment outside the monthly invoice stream.
// Deposits are scoped under a contract; independent payments are not.
type StandalonePayment struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	ContractID       *string    `json:"contract_id,omitempty"`
	PayerID          string     `json:"payer_id"`
	Type             string     `json:"type"`
	RentBase         int64      `json:"rent_base"`
	Amount           int64      `json:"amount"`
	LandlordAmount   int64      `json:"landlord_amount"`
	PlatformRevenue  int64      `json:"platform_revenue"`
	Status           string     `json:"status"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CheckoutToken    *string    `json:"checkout_token,omitempty"`
	GatewayPaymentID *string    `json:"gateway_payment_id,omitempty"`
	PayoutPlanned    bool       `json:"payout_planned"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CheckoutSession is what a caller needs to render the hosted checkout.
type CheckoutSession struct {
	Token               string `json:"token"`
	CheckoutFormContent string `json:"checkout_form_content"`
	PaymentPageURL      string `json:"payment_page_url"`
	Amount              int64  `json:"amount"`
	Currency            string `json:"currency"`
	EarlyPaymentApplied bool   `json:"early_payment_applied"`
	LateFeeAmount       int64  `json:"late_fee_amount"`
}
