/**
 * @description
 * Domain models for lease contracts and their renewal state.
 */
package domain

import (
	"strings"
	"time"
)

// Contract statuses.
const (
	ContractStatusDraft           = "draft"
	ContractStatusPendingApproval = "pending_approval"
	ContractStatusApproved        = "approved"
	ContractStatusActive          = "active"
	ContractStatusEnded           = "ended"
)

// Renewal statuses.
const (
	RenewalStatusOffered   = "OFFERED"
	RenewalStatusAccepted  = "ACCEPTED"
	RenewalStatusRejected  = "REJECTED"
	RenewalStatusActivated = "ACTIVATED"
)

// TenantContact identifies the tenant of a contract.
type TenantContact struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	NationalID *string `json:"national_id,omitempty"`
}

// Renewal is the rent increase offered near the contract anniversary.
type Renewal struct {
	Status          string     `json:"status"`
	IncreasePercent int        `json:"increase_percent"`
	NewRentAmount   int64      `json:"new_rent_amount"`
	OfferedAt       *time.Time `json:"offered_at,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
}

// LeaseContract is a tenancy agreement owned by a landlord account.
// Amounts are stored in the currency's smallest unit.
type LeaseContract struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"owner_id"`
	Status         string        `json:"status"`
	StartDate      *time.Time    `json:"start_date,omitempty"`
	PayDay         int           `json:"pay_day"`
	RentAmount     int64         `json:"rent_amount"`
	AgentID        *string       `json:"agent_id,omitempty"`
	LateFeeEnabled bool          `json:"late_fee_enabled"`
	Tenant         TenantContact `json:"tenant"`
	Renewal        *Renewal      `json:"renewal,omitempty"`
	GuestTokenHash *string       `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// HasAgent reports whether the contract was brokered by an agent.
func (c LeaseContract) HasAgent() bool {
	return c.AgentID != nil && strings.TrimSpace(*c.AgentID) != ""
}

// ClampedPayDay returns the pay-day of month limited to 1..30.
func (c LeaseContract) ClampedPayDay() int {
	switch {
	case c.PayDay < 1:
		return 1
	case c.PayDay > 30:
		return 30
	default:
		return c.PayDay
	}
}

// IsBillable reports whether invoice generation applies to the contract.
func (c LeaseContract) IsBillable() bool {
	return c.Status == ContractStatusActive || c.Status == ContractStatusApproved
}

// IsLandlord reports whether the caller owns the contract.
func (c LeaseContract) IsLandlord(callerID string) bool {
	return callerID != "" && callerID == c.OwnerID
}

// IsTenant reports whether the caller's email matches the tenant contact.
func (c LeaseContract) IsTenant(callerEmail string) bool {
	email := strings.TrimSpace(callerEmail)
	return email != "" && strings.EqualFold(email, strings.TrimSpace(c.Tenant.Email))
}
