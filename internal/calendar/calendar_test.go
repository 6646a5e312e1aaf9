package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextBusinessDay_WeekdayIsUnchanged(t *testing.T) {
	wednesday := day(2025, 3, 12)

	got, err := NextBusinessDay(wednesday, nil)
	require.NoError(t, err)
	assert.Equal(t, wednesday, got)
}

func TestNextBusinessDay_SaturdayRollsToMonday(t *testing.T) {
	got, err := NextBusinessDay(day(2025, 3, 8), NewHolidays())
	require.NoError(t, err)
	assert.Equal(t, day(2025, 3, 10), got)
}

func TestNextBusinessDay_SkipsHolidayMonday(t *testing.T) {
	holidays := NewHolidays(day(2025, 3, 10))

	got, err := NextBusinessDay(day(2025, 3, 9), holidays)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 3, 11), got)
}

func TestNextBusinessDay_PayoutScenario(t *testing.T) {
	paidAt := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	raw := paidAt.AddDate(0, 0, 8)
	require.Equal(t, time.Sunday, raw.Weekday())

	got, err := NextBusinessDay(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", got.Format("2006-01-02"))
	assert.Equal(t, 14, got.Hour())
}

func TestNextBusinessDay_FailsClosedOnPathologicalHolidays(t *testing.T) {
	start := day(2025, 1, 1)
	dates := make([]time.Time, 0, 90)
	for i := 0; i < 90; i++ {
		dates = append(dates, start.AddDate(0, 0, i))
	}

	_, err := NextBusinessDay(start, NewHolidays(dates...))
	assert.ErrorIs(t, err, ErrNoBusinessDay)
}

func TestHolidays_IgnoresTimeOfDay(t *testing.T) {
	holidays := NewHolidays(time.Date(2025, 4, 23, 18, 0, 0, 0, time.UTC))

	assert.True(t, holidays.Contains(day(2025, 4, 23)))
	assert.False(t, holidays.Contains(day(2025, 4, 24)))
}
