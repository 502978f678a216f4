package calendar

import (
	"time"
)

// DateFormat is the canonical key format for calendar dates.
const DateFormat = "2006-01-02"

// Calendar determines which calendar days count as business days.
// A business day is any day that is neither a weekend nor a configured
// holiday. The holiday table is injected configuration, so the same engine
// can serve different jurisdictions without a rebuild.
type Calendar struct {
	holidays map[string]struct{}
}

// New creates a Calendar from an explicit holiday list.
// Time-of-day and timezone components of the provided dates are ignored.
func New(holidays []time.Time) *Calendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h.Format(DateFormat)] = struct{}{}
	}
	return &Calendar{holidays: set}
}

// NewFromStrings creates a Calendar from holiday dates in YYYY-MM-DD form.
// Entries that do not parse are reported, not silently dropped.
func NewFromStrings(holidays []string) (*Calendar, error) {
	parsed := make([]time.Time, 0, len(holidays))
	for _, s := range holidays {
		d, err := time.Parse(DateFormat, s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, d)
	}
	return New(parsed), nil
}

// Normalize truncates a timestamp to its calendar date in UTC.
func Normalize(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether the given date is a business day.
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[d.Format(DateFormat)]
	return !holiday
}

// PreviousBusinessDay returns the closest business day strictly before d.
func (c *Calendar) PreviousBusinessDay(d time.Time) time.Time {
	for {
		d = d.AddDate(0, 0, -1)
		if c.IsBusinessDay(d) {
			return d
		}
	}
}

// NextBusinessDay returns the closest business day strictly after d.
func (c *Calendar) NextBusinessDay(d time.Time) time.Time {
	for {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			return d
		}
	}
}

// SubtractBusinessDays steps back n business days from d.
// There is no closed form because holiday spacing is irregular, so the
// calendar walks one business day at a time. n=0 returns d unchanged.
func (c *Calendar) SubtractBusinessDays(d time.Time, n int) time.Time {
	for i := 0; i < n; i++ {
		d = c.PreviousBusinessDay(d)
	}
	return d
}

// CountBusinessDaysBetween counts business days in [start, end], inclusive
// of both ends. Returns 0 when start is after end.
func (c *Calendar) CountBusinessDaysBetween(start, end time.Time) int {
	start = Normalize(start)
	end = Normalize(end)
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// BusinessDaysBack returns the n most recent business days ending at d
// (inclusive when d itself is a business day), ordered ascending.
func (c *Calendar) BusinessDaysBack(d time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	cur := Normalize(d)
	if !c.IsBusinessDay(cur) {
		cur = c.PreviousBusinessDay(cur)
	}
	for len(days) < n {
		days = append(days, cur)
		cur = c.PreviousBusinessDay(cur)
	}
	// Collected newest-first; reverse to ascending order.
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days
}
