package availability

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

type block struct {
	id     string
	reason string
	from   time.Time
	to     time.Time
	allDay bool
	window Interval
}

func compileBlock(b model.BlockedPeriod) (block, error) {
	from, err := ParseDate(b.StartDate)
	if err != nil {
		return block{}, fmt.Errorf("blocked period %s: %w", b.ID, err)
	}
	to, err := ParseDate(b.EndDate)
	if err != nil {
		return block{}, fmt.Errorf("blocked period %s: %w", b.ID, err)
	}
	if to.Before(from) {
		return block{}, fmt.Errorf("blocked period %s: end date %s before start date %s", b.ID, b.EndDate, b.StartDate)
	}
	out := block{id: b.ID, reason: b.Reason, from: from, to: to, allDay: b.IsAllDay}
	if !b.IsAllDay {
		if out.window, err = NewInterval(b.StartTime, b.EndTime); err != nil {
			return block{}, fmt.Errorf("blocked period %s: %w", b.ID, err)
		}
	}
	return out, nil
}

func (b block) touches(d time.Time) bool {
	return !d.Before(b.from) && !d.After(b.to)
}

// covers reports whether the block excludes span on civil date d.
func (b block) covers(d time.Time, span Interval) bool {
	if !b.touches(d) {
		return false
	}
	return b.allDay || b.window.Overlaps(span)
}
