package domain

import "time"

// Invoice statuses.
const (
	InvoiceStatusDue            = "DUE"
	InvoiceStatusOverdue        = "OVERDUE"
	InvoiceStatusPaymentPending = "PAYMENT_PENDING"
	InvoiceStatusPaid           = "PAID"
	InvoiceStatusFailed         = "FAILED"
	InvoiceStatusRefunded       = "REFUNDED"
	InvoiceStatusClosedUpfront  = "CLOSED_UPFRONT"
)

// InvoiceStatuses lists every status an invoice can hold.
var InvoiceStatuses = []string{
	InvoiceStatusDue,
	InvoiceStatusOverdue,
	InvoiceStatusPaymentPending,
	InvoiceStatusPaid,
	InvoiceStatusFailed,
	InvoiceStatusRefunded,
	InvoiceStatusClosedUpfront,
}

// IsValidInvoiceStatus reports whether status is a known invoice status.
func IsValidInvoiceStatus(status string) bool {
	for _, s := range InvoiceStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Invoice is one billing period's obligation under a lease contract.
type Invoice struct {
	ID                  string     `json:"id"`
	ContractID          string     `json:"contract_id"`
	OwnerID             string     `json:"owner_id"`
	Period              string     `json:"period"`
	DueDate             time.Time  `json:"due_date"`
	RentBase            int64      `json:"rent_base"`
	TenantTotal         int64      `json:"tenant_total"`
	LandlordNet         int64      `json:"landlord_net"`
	PlatformRevenue     int64      `json:"platform_revenue"`
	AgentRevenue        int64      `json:"agent_revenue"`
	Status              string     `json:"status"`
	IsOverdue           bool       `json:"is_overdue"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	LateFeeEnabled      bool       `json:"late_fee_enabled"`
	LateDays            int        `json:"late_days"`
	LateFeeAmount       int64      `json:"late_fee_amount"`
	CheckoutToken       *string    `json:"checkout_token,omitempty"`
	GatewayPaymentID    *string    `json:"gateway_payment_id,omitempty"`
	PayoutPlanned       bool       `json:"payout_planned"`
	EarlyPaymentApplied bool       `json:"early_payment_applied"`
	AmountLocked        bool       `json:"amount_locked"`
	ChargedTotal        *int64     `json:"charged_total,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsOpen reports whether the invoice still awaits payment.
func (i Invoice) IsOpen() bool {
	return i.Status == InvoiceStatusDue || i.Status == InvoiceStatusOverdue
}
