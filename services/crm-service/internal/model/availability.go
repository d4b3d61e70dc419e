package model

import "time"

// AvailabilitySlot is an availability rule. One-off rules carry Date; recurring
// rules carry DayOfWeek (0=Sunday) or a RecurringPattern RRULE, optionally
// bounded by Date (first day) and RecurrenceEnd (last day).
type AvailabilitySlot struct {
	ID               string    `json:"id"`
	Date             string    `json:"date,omitempty"`
	DayOfWeek        *int      `json:"dayOfWeek,omitempty"`
	StartTime        string    `json:"startTime"`
	EndTime          string    `json:"endTime"`
	IsAvailable      bool      `json:"isAvailable"`
	IsRecurring      bool      `json:"isRecurring"`
	RecurringPattern string    `json:"recurringPattern,omitempty"`
	RecurrenceEnd    string    `json:"recurrenceEnd,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// BlockedPeriod excludes [StartDate, EndDate]. Partial-day blocks apply
// [StartTime, EndTime) on every day of the range.
type BlockedPeriod struct {
	ID        string    `json:"id"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	IsAllDay  bool      `json:"isAllDay"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}
