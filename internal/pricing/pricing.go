// Package pricing holds the money arithmetic of the lease engine: the
// tenant/landlord/agent/platform split, deposit split, late fees and renewal
// increases. Amounts are integers in the currency's smallest unit and every
// derived figure is rounded half-up on its own.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// GraceDays is the number of late days before fees accrue.
	GraceDays = 5
	// EarlyPaymentWindow is how far ahead of the due date a checkout counts as early.
	EarlyPaymentWindow = 7 * 24 * time.Hour
	// DepositMultiplier is the number of monthly rents a tenant pays as deposit.
	DepositMultiplier = 3
	// DepositLandlordMultiplier is the share of the deposit credited to the landlord.
	DepositLandlordMultiplier = 2
	// RenewalIncreasePercent is the fixed rent increase offered at renewal.
	RenewalIncreasePercent = 25
)

var (
	agentTenantRate   = decimal.RequireFromString("1.05")
	agentLandlordRate = decimal.RequireFromString("0.95")
	agentRate         = decimal.RequireFromString("0.02")
	tenantRate        = decimal.RequireFromString("1.03")
	landlordRate      = decimal.RequireFromString("0.97")
	lateFeeDailyRate  = decimal.RequireFromString("0.01")
)

// Split is the 4-way division of one rent payment.
type Split struct {
	TenantTotal     int64 `json:"tenant_total"`
	LandlordNet     int64 `json:"landlord_net"`
	AgentRevenue    int64 `json:"agent_revenue"`
	PlatformRevenue int64 `json:"platform_revenue"`
}

// Calculate splits rentBase between tenant, landlord, agent and platform.
// The platform keeps whatever remains after the independently rounded figures.
func Calculate(rentBase int64, hasAgent bool) Split {
	if hasAgent {
		tenantTotal := applyRate(rentBase, agentTenantRate)
		landlordNet := applyRate(rentBase, agentLandlordRate)
		agentRevenue := applyRate(rentBase, agentRate)
		return Split{
			TenantTotal:     tenantTotal,
			LandlordNet:     landlordNet,
			AgentRevenue:    agentRevenue,
			PlatformRevenue: tenantTotal - landlordNet - agentRevenue,
		}
	}

	tenantTotal := applyRate(rentBase, tenantRate)
	landlordNet := applyRate(rentBase, landlordRate)
	return Split{
		TenantTotal:     tenantTotal,
		LandlordNet:     landlordNet,
		PlatformRevenue: tenantTotal - landlordNet,
	}
}

// DepositSplit returns the fixed security deposit split for a monthly rent.
func DepositSplit(rent int64) Split {
	return Split{
		TenantTotal:     rent * DepositMultiplier,
		LandlordNet:     rent * DepositLandlordMultiplier,
		PlatformRevenue: rent * (DepositMultiplier - DepositLandlordMultiplier),
	}
}

// LateFee is the penalty assessment for an overdue invoice on a given day.
type LateFee struct {
	LateDays       int   `json:"late_days"`
	ChargeableDays int   `json:"chargeable_days"`
	Amount         int64 `json:"amount"`
}

// AssessLateFee computes the late fee for rentBase on an invoice due at dueDate,
// as seen at now in loc. Late days are whole calendar days.
func AssessLateFee(rentBase int64, dueDate, now time.Time, loc *time.Location) LateFee {
	lateDays := DaysBetween(dueDate, now, loc)
	if lateDays < 0 {
		lateDays = 0
	}
	chargeable := lateDays - GraceDays
	if chargeable < 0 {
		chargeable = 0
	}

	amount := decimal.NewFromInt(rentBase).
		Mul(lateFeeDailyRate).
		Mul(decimal.NewFromInt(int64(chargeable))).
		Round(0).
		IntPart()

	return LateFee{LateDays: lateDays, ChargeableDays: chargeable, Amount: amount}
}

// IsEarlyPayment reports whether a checkout at now is at least a week ahead of dueDate.
func IsEarlyPayment(dueDate, now time.Time) bool {
	return dueDate.Sub(now) >= EarlyPaymentWindow
}

// RenewalRent returns the rent after applying an increase of percent.
func RenewalRent(rent int64, percent int) int64 {
	rate := decimal.NewFromInt(int64(100 + percent)).Div(decimal.NewFromInt(100))
	return applyRate(rent, rate)
}

// DaysBetween counts calendar days from `from` to `to` in loc. It is negative
// when `to` falls on an earlier date.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	f := from.In(loc)
	t := to.In(loc)
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

func applyRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}
