package availability

import "fmt"

// Interval is a half-open span of the day, [Start, End).
type Interval struct {
	Start Clock
	End   Clock
}

func NewInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if e <= s {
		return Interval{}, fmt.Errorf("start %s must be before end %s", start, end)
	}
	return Interval{Start: s, End: e}, nil
}

// Span is the interval of a booking of duration minutes starting at start.
func Span(start Clock, duration int) Interval {
	return Interval{Start: start, End: start.Add(duration)}
}

// Overlaps uses half-open semantics: intervals that merely touch do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

func overlapsAny(span Interval, busy []Interval) bool {
	for _, b := range busy {
		if span.Overlaps(b) {
			return true
		}
	}
	return false
}

// GenerateTimeSlots returns "HH:MM" starts from startHour:00 stepping by
// intervalMinutes, excluding endHour:00. Steps are continuous minutes, so an
// interval that does not divide 60 drifts across hour boundaries.
func GenerateTimeSlots(startHour, endHour, intervalMinutes int) []string {
	if intervalMinutes <= 0 || startHour < 0 || endHour > 24 || endHour <= startHour {
		return nil
	}
	end := Clock(endHour * 60)
	slots := make([]string, 0, int(end-Clock(startHour*60))/intervalMinutes+1)
	for c := Clock(startHour * 60); c < end; c = c.Add(intervalMinutes) {
		slots = append(slots, c.String())
	}
	return slots
}
