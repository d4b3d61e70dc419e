package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/teambition/rrule-go"
)

// recurrenceAnchor seeds RRULEs that carry no start date of their own. It is a
// Monday so INTERVAL=2 weekly rules alternate from a stable week.
var recurrenceAnchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type rule struct {
	id        string
	window    Interval
	available bool
	recurring bool
	date      time.Time // one-off date, or first day of a recurrence
	until     time.Time // last day of a recurrence, zero when open
	weekday   *time.Weekday
	rr        *rrule.RRule
}

func compileRule(s model.AvailabilitySlot) (rule, error) {
	window, err := NewInterval(s.StartTime, s.EndTime)
	if err != nil {
		return rule{}, fmt.Errorf("availability %s: %w", s.ID, err)
	}
	r := rule{id: s.ID, window: window, available: s.IsAvailable, recurring: s.IsRecurring}

	if s.Date != "" {
		if r.date, err = ParseDate(s.Date); err != nil {
			return rule{}, fmt.Errorf("availability %s: %w", s.ID, err)
		}
	}
	if !s.IsRecurring {
		if r.date.IsZero() {
			return rule{}, fmt.Errorf("availability %s: one-off rule needs a date", s.ID)
		}
		return r, nil
	}

	if s.RecurrenceEnd != "" {
		if r.until, err = ParseDate(s.RecurrenceEnd); err != nil {
			return rule{}, fmt.Errorf("availability %s: %w", s.ID, err)
		}
	}
	if s.DayOfWeek != nil {
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return rule{}, fmt.Errorf("availability %s: day of week %d out of range", s.ID, *s.DayOfWeek)
		}
		wd := time.Weekday(*s.DayOfWeek)
		r.weekday = &wd
	}
	if p := strings.TrimSpace(s.RecurringPattern); p != "" {
		rr, err := ParseRecurrence(p, r.date)
		if err != nil {
			return rule{}, fmt.Errorf("availability %s: %w", s.ID, err)
		}
		r.rr = rr
	}
	if r.weekday == nil && r.rr == nil {
		if r.date.IsZero() {
			return rule{}, fmt.Errorf("availability %s: recurring rule needs a day of week, pattern or start date", s.ID)
		}
		wd := r.date.Weekday()
		r.weekday = &wd
	}
	return r, nil
}

// ParseRecurrence parses an RFC 5545 RRULE (with or without the "RRULE:"
// prefix) anchored at start, or at a fixed Monday when start is zero.
func ParseRecurrence(pattern string, start time.Time) (*rrule.RRule, error) {
	pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "RRULE:")
	rr, err := rrule.StrToRRule(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid recurring pattern %q: %w", pattern, err)
	}
	if start.IsZero() {
		start = recurrenceAnchor
	}
	rr.DTStart(start)
	return rr, nil
}

// appliesOn reports whether the rule covers civil date d (midnight UTC).
func (r rule) appliesOn(d time.Time) bool {
	if !r.recurring {
		return r.date.Equal(d)
	}
	if !r.date.IsZero() && d.Before(r.date) {
		return false
	}
	if !r.until.IsZero() && d.After(r.until) {
		return false
	}
	if r.weekday != nil && d.Weekday() != *r.weekday {
		return false
	}
	if r.rr != nil {
		return len(r.rr.Between(d, d.Add(24*time.Hour-time.Second), true)) > 0
	}
	return true
}
