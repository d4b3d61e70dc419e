package availability

import (
	"fmt"
	"time"
)

type DayStatus string

const (
	DayBlocked   DayStatus = "blocked"
	DayBusy      DayStatus = "busy"
	DayAvailable DayStatus = "available"
	DayNone      DayStatus = "none"
)

type Day struct {
	Date           string    `json:"date"`
	Status         DayStatus `json:"status"`
	AvailableSlots int       `json:"availableSlots"`
}

// ClassifyDay aggregates a date for calendar display: blocked beats busy,
// busy beats available. It is never used to decide a booking.
func (r *Resolver) ClassifyDay(date string, opts SlotOptions) (Day, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Day{}, err
	}
	slots, err := r.DaySlots(date, opts)
	if err != nil {
		return Day{}, err
	}
	day := Day{Date: date, Status: DayNone}
	for _, s := range slots {
		if s.Available() {
			day.AvailableSlots++
		}
	}

	switch {
	case r.blockedOn(d):
		day.Status = DayBlocked
	case len(r.busy[date]) > 0:
		day.Status = DayBusy
	case day.AvailableSlots > 0:
		day.Status = DayAvailable
	}
	return day, nil
}

func (r *Resolver) blockedOn(d time.Time) bool {
	for _, b := range r.blocks {
		if b.touches(d) {
			return true
		}
	}
	return false
}

// Month classifies every day of the given month.
func (r *Resolver) Month(year int, month time.Month, opts SlotOptions) ([]Day, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	var days []Day
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		day, err := r.ClassifyDay(d.Format(DateLayout), opts)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}

// MonthRange returns the first and last civil dates of a month.
func MonthRange(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout)
}
