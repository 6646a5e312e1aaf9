package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_WithoutAgent(t *testing.T) {
	split := Calculate(10000, false)

	assert.Equal(t, int64(10300), split.TenantTotal)
	assert.Equal(t, int64(9700), split.LandlordNet)
	assert.Equal(t, int64(0), split.AgentRevenue)
	assert.Equal(t, int64(600), split.PlatformRevenue)
}

func TestCalculate_WithAgent(t *testing.T) {
	split := Calculate(10000, true)

	assert.Equal(t, int64(10500), split.TenantTotal)
	assert.Equal(t, int64(9500), split.LandlordNet)
	assert.Equal(t, int64(200), split.AgentRevenue)
	assert.Equal(t, int64(800), split.PlatformRevenue)
}

func TestCalculate_RoundsEachFigureHalfUp(t *testing.T) {
	// 150 * 1.03 = 154.5, 150 * 0.97 = 145.5
	split := Calculate(150, false)
	assert.Equal(t, int64(155), split.TenantTotal)
	assert.Equal(t, int64(146), split.LandlordNet)
	assert.Equal(t, int64(9), split.PlatformRevenue)

	// 50 * 1.05 = 52.5, 50 * 0.95 = 47.5, 50 * 0.02 = 1
	split = Calculate(50, true)
	assert.Equal(t, int64(53), split.TenantTotal)
	assert.Equal(t, int64(48), split.LandlordNet)
	assert.Equal(t, int64(1), split.AgentRevenue)
	assert.Equal(t, int64(4), split.PlatformRevenue)
}

func TestCalculate_SplitInvariant(t *testing.T) {
	for _, hasAgent := range []bool{false, true} {
		for rent := int64(1); rent <= 5000; rent += 7 {
			split := Calculate(rent, hasAgent)
			require.GreaterOrEqual(t, split.TenantTotal, rent, "rent=%d agent=%t", rent, hasAgent)
			require.LessOrEqual(t, split.LandlordNet+split.AgentRevenue, split.TenantTotal, "rent=%d agent=%t", rent, hasAgent)
		}
	}
}

func TestDepositSplit(t *testing.T) {
	split := DepositSplit(12000)

	assert.Equal(t, int64(36000), split.TenantTotal)
	assert.Equal(t, int64(24000), split.LandlordNet)
	assert.Equal(t, int64(12000), split.PlatformRevenue)
	assert.Zero(t, split.AgentRevenue)
}

func TestAssessLateFee(t *testing.T) {
	loc := time.UTC
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, loc)

	tests := []struct {
		name       string
		now        time.Time
		lateDays   int
		chargeable int
		amount     int64
	}{
		{name: "before due", now: due.AddDate(0, 0, -3), lateDays: 0, chargeable: 0, amount: 0},
		{name: "on due date", now: due.Add(15 * time.Hour), lateDays: 0, chargeable: 0, amount: 0},
		{name: "inside grace", now: due.AddDate(0, 0, 5), lateDays: 5, chargeable: 0, amount: 0},
		{name: "first chargeable day", now: due.AddDate(0, 0, 6), lateDays: 6, chargeable: 1, amount: 100},
		{name: "ten days late", now: time.Date(2025, 1, 20, 9, 30, 0, 0, loc), lateDays: 10, chargeable: 5, amount: 500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fee := AssessLateFee(10000, due, tc.now, loc)
			assert.Equal(t, tc.lateDays, fee.LateDays)
			assert.Equal(t, tc.chargeable, fee.ChargeableDays)
			assert.Equal(t, tc.amount, fee.Amount)
		})
	}
}

func TestAssessLateFee_Monotonic(t *testing.T) {
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var previous int64
	for day := 0; day < 120; day++ {
		fee := AssessLateFee(7777, due, due.AddDate(0, 0, day), time.UTC)
		require.GreaterOrEqual(t, fee.Amount, previous, "day %d", day)
		previous = fee.Amount
	}
}

func TestAssessLateFee_RoundsHalfUp(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// 150 * 0.01 * 1 = 1.5
	fee := AssessLateFee(150, due, due.AddDate(0, 0, 6), time.UTC)
	assert.Equal(t, int64(2), fee.Amount)
}

func TestIsEarlyPayment(t *testing.T) {
	due := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsEarlyPayment(due, due.Add(-7*24*time.Hour)))
	assert.True(t, IsEarlyPayment(due, due.AddDate(0, 0, -30)))
	assert.False(t, IsEarlyPayment(due, due.Add(-7*24*time.Hour+time.Minute)))
	assert.False(t, IsEarlyPayment(due, due.AddDate(0, 0, 2)))
}

func TestRenewalRent(t *testing.T) {
	assert.Equal(t, int64(12500), RenewalRent(10000, RenewalIncreasePercent))
	assert.Equal(t, int64(1251), RenewalRent(1001, RenewalIncreasePercent))
}

func TestDaysBetween_UsesLocalCalendarDates(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)

	// 22:30 UTC on Jan 9 is already Jan 10 in Istanbul.
	from := time.Date(2025, 1, 9, 22, 30, 0, 0, time.UTC)
	to := time.Date(2025, 1, 12, 8, 0, 0, 0, loc)
	assert.Equal(t, 2, DaysBetween(from, to, loc))
	assert.Equal(t, -2, DaysBetween(to, from, loc))
}
