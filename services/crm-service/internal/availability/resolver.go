// Package availability decides whether a slot can be booked, given the
// availability rules, blocked periods and existing appointments of a day.
// Everything here is pure: callers load the data and pass a Snapshot.
package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusBusy        Status = "busy"
	StatusBlocked     Status = "blocked"
	StatusUnavailable Status = "unavailable"
)

// Snapshot is the data a resolution runs against.
type Snapshot struct {
	Rules        []model.AvailabilitySlot
	Blocks       []model.BlockedPeriod
	Appointments []model.Appointment
}

// Result is the classification of one slot. Reason carries the blocked
// period reason or the id of the conflicting appointment.
type Result struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

func (r Result) Available() bool { return r.Status == StatusAvailable }

type busySpan struct {
	id   string
	span Interval
}

// Resolver answers availability questions for one Snapshot. It is immutable
// and safe for concurrent use.
type Resolver struct {
	rules  []rule
	blocks []block
	busy   map[string][]busySpan
}

// NewResolver compiles s. Malformed records do not stop resolution: a bad
// rule is dropped, a blocked period with unreadable times blocks its whole
// days, and an appointment with unreadable times keeps its date busy. The
// returned error lists every such record and the Resolver is always usable.
func NewResolver(s Snapshot) (*Resolver, error) {
	r := &Resolver{busy: map[string][]busySpan{}}
	var errs []error
	for _, slot := range s.Rules {
		c, err := compileRule(slot)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.rules = append(r.rules, c)
	}
	for _, b := range s.Blocks {
		c, err := compileBlock(b)
		if err != nil {
			errs = append(errs, err)
			if !b.IsAllDay {
				b.IsAllDay = true
				if c, err = compileBlock(b); err == nil {
					r.blocks = append(r.blocks, c)
				}
			}
			continue
		}
		r.blocks = append(r.blocks, c)
	}
	for _, a := range s.Appointments {
		if !a.Status.Blocking() {
			continue
		}
		span, err := appointmentSpan(a)
		if err != nil {
			errs = append(errs, err)
			span = Interval{Start: 0, End: EndOfDay}
		}
		r.busy[a.Date] = append(r.busy[a.Date], busySpan{id: a.ID, span: span})
	}
	return r, errors.Join(errs...)
}

func appointmentSpan(a model.Appointment) (Interval, error) {
	start, err := ParseClock(a.StartTime)
	if err != nil {
		return Interval{}, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	if a.EndTime != "" {
		end, err := ParseClock(a.EndTime)
		if err != nil {
			return Interval{}, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		if end > start {
			return Interval{Start: start, End: end}, nil
		}
	}
	if a.Duration <= 0 {
		return Interval{}, fmt.Errorf("appointment %s: no end time or duration", a.ID)
	}
	return Span(start, a.Duration), nil
}

// Check classifies the booking of duration minutes at startTime on date.
// Precedence: blocked, then busy, then a closing rule overlapping the span
// (unavailable), then available, else unavailable.
func (r *Resolver) Check(date, startTime string, duration int) (Result, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Result{}, err
	}
	start, err := ParseClock(startTime)
	if err != nil {
		return Result{}, err
	}
	if duration <= 0 {
		return Result{}, fmt.Errorf("duration must be positive, got %d", duration)
	}
	return r.check(d, date, start, duration, r.rulesOn(d)), nil
}

// dayRules splits the rules applying on one date into the windows that open
// slots and the isAvailable=false windows that close them.
type dayRules struct {
	open   []rule
	closed []rule
}

func (r *Resolver) rulesOn(d time.Time) dayRules {
	var out dayRules
	for _, ru := range r.rules {
		if !ru.appliesOn(d) {
			continue
		}
		if ru.available {
			out.open = append(out.open, ru)
		} else {
			out.closed = append(out.closed, ru)
		}
	}
	return out
}

func (r *Resolver) check(d time.Time, date string, start Clock, duration int, rules dayRules) Result {
	span := Span(start, duration)
	res := Result{Date: date, StartTime: start.String(), EndTime: span.End.String()}

	for _, b := range r.blocks {
		if b.covers(d, span) {
			res.Status = StatusBlocked
			res.Reason = b.reason
			return res
		}
	}
	for _, a := range r.busy[date] {
		if a.span.Overlaps(span) {
			res.Status = StatusBusy
			res.Reason = a.id
			return res
		}
	}
	for _, ru := range rules.closed {
		if ru.window.Overlaps(span) {
			res.Status = StatusUnavailable
			return res
		}
	}
	if span.End <= EndOfDay {
		for _, ru := range rules.open {
			if ru.window.Contains(span) {
				res.Status = StatusAvailable
				return res
			}
		}
	}
	res.Status = StatusUnavailable
	return res
}

// SlotOptions describes the candidate grid of a day.
type SlotOptions struct {
	StartHour       int
	EndHour         int
	IntervalMinutes int
	Duration        int
}

func (o SlotOptions) validate() error {
	if o.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", o.Duration)
	}
	if o.IntervalMinutes <= 0 {
		return fmt.Errorf("slot interval must be positive, got %d", o.IntervalMinutes)
	}
	if o.StartHour < 0 || o.EndHour > 24 || o.EndHour <= o.StartHour {
		return fmt.Errorf("invalid business hours %d-%d", o.StartHour, o.EndHour)
	}
	return nil
}

// DaySlots classifies every candidate slot of date.
func (r *Resolver) DaySlots(date string, opts SlotOptions) ([]Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	rules := r.rulesOn(d)
	candidates := GenerateTimeSlots(opts.StartHour, opts.EndHour, opts.IntervalMinutes)
	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		start, _ := ParseClock(c)
		out = append(out, r.check(d, date, start, opts.Duration, rules))
	}
	return out, nil
}
