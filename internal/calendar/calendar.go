// Package calendar computes landlord business days.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// MaxSearchDays bounds how far NextBusinessDay advances before giving up.
const MaxSearchDays = 60

const dateLayout = "2006-01-02"

// ErrNoBusinessDay is returned when no business day exists inside the search window.
var ErrNoBusinessDay = errors.New("no business day found within search window")

// Holidays is a set of calendar dates on which payouts are not executed.
type Holidays map[string]struct{}

// NewHolidays builds a holiday set from dates. Only the calendar date matters.
func NewHolidays(dates ...time.Time) Holidays {
	h := make(Holidays, len(dates))
	for _, d := range dates {
		h[d.Format(dateLayout)] = struct{}{}
	}
	return h
}

// Contains reports whether the calendar date of t is a holiday.
func (h Holidays) Contains(t time.Time) bool {
	if len(h) == 0 {
		return false
	}
	_, ok := h[t.Format(dateLayout)]
	return ok
}

// IsBusinessDay reports whether t is a weekday that is not a holiday.
func IsBusinessDay(t time.Time, holidays Holidays) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !holidays.Contains(t)
}

// NextBusinessDay returns date itself when it is a business day, otherwise the
// first following business day. It fails closed after MaxSearchDays days.
func NextBusinessDay(date time.Time, holidays Holidays) (time.Time, error) {
	candidate := date
	for i := 0; i <= MaxSearchDays; i++ {
		if IsBusinessDay(candidate, holidays) {
			return candidate, nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("%w: start %s", ErrNoBusinessDay, date.Format(dateLayout))
}
