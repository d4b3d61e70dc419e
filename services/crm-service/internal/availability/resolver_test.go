package availability

import (
	"testing"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

// 2024-03-04 is a Monday.
const monday = "2024-03-04"

func weekday(d int) *int { return &d }

func mondayRule() model.AvailabilitySlot {
	return model.AvailabilitySlot{
		ID:          "rule-mon",
		DayOfWeek:   weekday(1),
		StartTime:   "09:00",
		EndTime:     "17:00",
		IsAvailable: true,
		IsRecurring: true,
	}
}

func mustResolver(t *testing.T, s Snapshot) *Resolver {
	t.Helper()
	r, err := NewResolver(s)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func mustCheck(t *testing.T, r *Resolver, date, start string, duration int) Result {
	t.Helper()
	res, err := r.Check(date, start, duration)
	if err != nil {
		t.Fatalf("Check(%s %s %d): %v", date, start, duration, err)
	}
	return res
}

func TestCheck_RuleOnlyIsAvailable(t *testing.T) {
	r := mustResolver(t, Snapshot{Rules: []model.AvailabilitySlot{mondayRule()}})
	res := mustCheck(t, r, monday, "10:00", 30)
	if res.Status != StatusAvailable {
		t.Fatalf("expected available, got %s", res.Status)
	}
	if res.EndTime != "10:30" {
		t.Fatalf("expected end 10:30, got %s", res.EndTime)
	}
}

func TestCheck_OverlappingAppointmentIsBusy(t *testing.T) {
	r := mustResolver(t, Snapshot{
		Rules: []model.AvailabilitySlot{mondayRule()},
		Appointments: []model.Appointment{{
			ID: "appt-1", Date: monday, StartTime: "10:00", EndTime: "10:30", Duration: 30, Status: model.AppointmentScheduled,
		}},
	})
	res := mustCheck(t, r, monday, "10:00", 30)
	if res.Status != StatusBusy || res.Reason != "appt-1" {
		t.Fatalf("expected busy by appt-1, got %+v", res)
	}
}

func TestCheck_FullDayBlockWinsOverRule(t *testing.T) {
	r := mustResolver(t, Snapshot{
		Rules: []model.AvailabilitySlot{mondayRule()},
		Blocks: []model.BlockedPeriod{{
			ID: "blk-1", StartDate: monday, EndDate: monday, IsAllDay: true, Reason: "Vacaciones",
		}},
		Appointments: []model.Appointment{{
			ID: "appt-1", Date: monday, StartTime: "10:00", EndTime: "10:30", Duration: 30, Status: model.AppointmentConfirmed,
		}},
	})
	for _, start := range []string{"09:00", "10:00", "16:30"} {
		res := mustCheck(t, r, monday, start, 30)
		if res.Status != StatusBlocked || res.Reason != "Vacaciones" {
			t.Fatalf("%s: expected blocked, got %+v", start, res)
		}
	}
}

func TestCheck_SpanPastWindowIsUnavailable(t *testing.T) {
	r := mustResolver(t, Snapshot{Rules: []model.AvailabilitySlot{mondayRule()}})
	if res := mustCheck(t, r, monday, "16:30", 60); res.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Status)
	}
	if res := mustCheck(t, r, monday, "16:30", 30); res.Status != StatusAvailable {
		t.Fatalf("expected 16:30+30 to fit, got %s", res.Status)
	}
}

func TestCheck_AdjacentAppointmentStaysAvailable(t *testing.T) {
	r := mustResolver(t, Snapshot{
		Rules: []model.AvailabilitySlot{mondayRule()},
		Appointments: []model.Appointment{{
			ID: "appt-1", Date: monday, StartTime: "09:30", EndTime: "10:00", Duration: 30, Status: model.AppointmentScheduled,
		}},
	})
	if res := mustCheck(t, r, monday, "10:00", 30); res.Status != StatusAvailable {
		t.Fatalf("appointment ending at slot start must not conflict, got %s", res.Status)
	}
	if res := mustCheck(t, r, monday, "09:00", 30); res.Status != StatusAvailable {
		t.Fatalf("slot ending at appointment start must not conflict, got %s", res.Status)
	}
	if res := mustCheck(t, r, monday, "09:15", 30); res.Status != StatusBusy {
		t.Fatalf("expected busy for partial overlap, got %s", res.Status)
	}
}

func TestCheck_CancelledAndNoShowDoNotOccupy(t *testing.T) {
	r := mustResolver(t, Snapshot{
		Rules: []model.AvailabilitySlot{mondayRule()},
		Appointments: []model.Appointment{
			{ID: "a", Date: monday, StartTime: "10:00", EndTime: "10:30", Duration: 30, Status: model.AppointmentCancelled},
			{ID: "b", Date: monday, StartTime: "10:00", EndTime: "10:30", Duration: 30, Status: model.AppointmentNoShow},
		},
	})
	if res := mustCheck(t, r, monday, "10:00", 30); res.Status != StatusAvailable {
		t.Fatalf("expected available, got %s", res.Status)
	}
}

func TestCheck_PartialBlockOnlyCoversItsWindow(t *testing.T) {
	r := mustResolver(t, Snapshot{
		Rules: []model.AvailabilitySlot{mondayRule()},
		Blocks: []model.BlockedPeriod{{
			ID: "blk", StartDate: "2024-03-01", EndDate: "2024-03-08", StartTime: "12:00", EndTime: "13:00", Reason: "Comida",
		}},
	})
	if res := mustCheck(t, r, monday, "11:30", 30); res.Status != StatusAvailable {
		t.Fatalf("11:30-12:00 touches the block only at its start, got %s", res.Status)
	}
	if res := mustCheck(t, r, monday, "11:45", 30); res.Status != StatusBlocked {
		t.Fatalf("11:45-12:15 overlaps the block, got %s", res.Status)
	}
	if res := mustCheck(t, r, monday, "13:00", 30); res.Status != StatusAvailable {
		t.Fatalf("13:00 starts when the block ends, got %s", res.Status)
	}
}

func TestCheck_UnconfiguredDayIsUnavailable(t *testing.T) {
	r := mustResolver(t, Snapshot{Rules: []model.AvailabilitySlot{mondayRule()}})
	if res := mustCheck(t, r, "2024-03-05", "10:00", 30); res.Status != StatusUnavailable {
		t.Fatalf("tuesday has no rule, got %s", res.Status)
	}
}

func TestCheck_UnavailableRuleNeverOpensASlot(t *testing.T) {
	rule := mondayRule()
	rule.IsAvailable = false
	r := mustResolver(t, Snapshot{Rules: []model.AvailabilitySlot{rule}})
	if res := mustCheck(t, r, monday, "10:00", 30); res.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Status)
	}
}

func TestCheck_ClosedRuleOverridesRecurringWindow(t *testing.T) {
	r := mustResolver(t, Snapshot{Rules: []model.AvailabilitySlot{
		mondayRule(),
		{ID: "closed", Date: monday, StartTime: "10:00", EndTime: "11:00", IsAvailable: false},
	}})
	cases := []struct {
		start    string
		duration int
		want     Status
	}{
		{"10:00", 30, StatusUnavailable},
		{"09:30", 60, StatusUnavailable},
		{"09:30", 30, StatusAvailable},
		{"11:00", 30, StatusAvailable},
	}
	for _, tc := range cases {
		if res := mustCheck(t, r, monday, tc.start, tc.duration); res.Status != tc.want {
			t.Fatalf("%s x %d: expected %s, got %s", tc.start, tc.duration, tc.want, res.Status)
		}
	}
	if res := mustCheck(t, r, "2024-03-11", "10:00", 30); res.Status != StatusAvailable {
		t.Fatalf("closing a single monday must not close the next one: got %s", res.Status)
	}
}

func TestCheck_OneOffAndRecurrenceWindow(t *testing.T) {
	r := mustResolver(t, Snapshot{Rules: []model.AvailabilitySlot{
		{ID: "oneoff", Date: "2024-03-09", StartTime: "10:00", EndTime: "12:00", IsAvailable: true},
		{ID: "bounded", DayOfWeek: weekday(3), Date: "2024-03-01", RecurrenceEnd: "2024-03-20", StartTime: "09:00", EndTime: "10:00", IsAvailable: true, IsRecurring: true},
	}})
	if res := mustCheck(t, r, "2024-03-09", "10:00", 60); res.Status != StatusAvailable {
		t.Fatalf("one-off saturday: got %s", res.Status)
	}
	if res := mustCheck(t, r, "2024-03-16", "10:00", 60); res.Status != StatusUnavailable {
		t.Fatalf("one-off must not repeat: got %s", res.Status)
	}
	if res := mustCheck(t, r, "2024-03-13", "09:00", 30); res.Status != StatusAvailable {
		t.Fatalf("wednesday inside recurrence: got %s", res.Status)
	}
	if res := mustCheck(t, r, "2024-03-27", "09:00", 30); res.Status != StatusUnavailable {
		t.Fatalf("wednesday after recurrence end: got %s", res.Status)
	}
}

func TestCheck_RecurringPattern(t *testing.T) {
	r := mustResolver(t, Snapshot{Rules: []model.AvailabilitySlot{{
		ID: "rrule", Date: "2024-03-04", RecurringPattern: "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,TH",
		StartTime: "15:00", EndTime: "18:00", IsAvailable: true, IsRecurring: true,
	}}})
	cases := map[string]Status{
		"2024-03-04": StatusAvailable,   // monday, week 0
		"2024-03-07": StatusAvailable,   // thursday, week 0
		"2024-03-11": StatusUnavailable, // monday, week 1
		"2024-03-18": StatusAvailable,   // monday, week 2
		"2024-02-26": StatusUnavailable, // before the first day
	}
	for date, want := range cases {
		if res := mustCheck(t, r, date, "15:00", 60); res.Status != want {
			t.Fatalf("%s: expected %s, got %s", date, want, res.Status)
		}
	}
}

func TestCheck_IsIdempotent(t *testing.T) {
	r := mustResolver(t, Snapshot{
		Rules: []model.AvailabilitySlot{mondayRule()},
		Appointments: []model.Appointment{{
			ID: "appt-1", Date: monday, StartTime: "11:00", EndTime: "12:00", Duration: 60, Status: model.AppointmentScheduled,
		}},
	})
	for _, start := range GenerateTimeSlots(8, 18, 15) {
		first := mustCheck(t, r, monday, start, 45)
		second := mustCheck(t, r, monday, start, 45)
		if first != second {
			t.Fatalf("%s: %+v != %+v", start, first, second)
		}
	}
}

func TestCheck_RejectsBadInput(t *testing.T) {
	r := mustResolver(t, Snapshot{})
	if _, err := r.Check("2024-13-01", "10:00", 30); err == nil {
		t.Fatal("expected invalid date error")
	}
	if _, err := r.Check(monday, "10:0", 30); err == nil {
		t.Fatal("expected invalid time error")
	}
	if _, err := r.Check(monday, "10:00", 0); err == nil {
		t.Fatal("expected invalid duration error")
	}
}

func TestNewResolver_SkipsMalformedRecords(t *testing.T) {
	r, err := NewResolver(Snapshot{
		Rules: []model.AvailabilitySlot{
			mondayRule(),
			{ID: "bad", DayOfWeek: weekday(1), StartTime: "17:00", EndTime: "09:00", IsAvailable: true, IsRecurring: true},
		},
		Blocks: []model.BlockedPeriod{
			{ID: "inverted", StartDate: "2024-03-05", EndDate: "2024-03-04", IsAllDay: true},
			{ID: "no-times", StartDate: "2024-03-11", EndDate: "2024-03-11", StartTime: "12:00", Reason: "Formación"},
		},
		Appointments: []model.Appointment{
			{ID: "appt-bad", Date: "2024-03-18", StartTime: "25:00", Duration: 30, Status: model.AppointmentScheduled},
		},
	})
	if err == nil {
		t.Fatal("expected the malformed records to be reported")
	}
	if r == nil {
		t.Fatal("expected a usable resolver")
	}

	if got := mustCheck(t, r, monday, "10:00", 30); got.Status != StatusAvailable {
		t.Fatalf("good rule still applies: got %s", got.Status)
	}
	got := mustCheck(t, r, "2024-03-11", "16:00", 30)
	if got.Status != StatusBlocked || got.Reason != "Formación" {
		t.Fatalf("block with unreadable times covers the day: got %+v", got)
	}
	got = mustCheck(t, r, "2024-03-18", "09:00", 30)
	if got.Status != StatusBusy || got.Reason != "appt-bad" {
		t.Fatalf("appointment with unreadable times keeps the day busy: got %+v", got)
	}
	if got := mustCheck(t, r, "2024-03-25", "09:00", 30); got.Status != StatusAvailable {
		t.Fatalf("other days unaffected: got %s", got.Status)
	}
}

func TestDaySlots(t *testing.T) {
	r := mustResolver(t, Snapshot{
		Rules: []model.AvailabilitySlot{mondayRule()},
		Appointments: []model.Appointment{{
			ID: "appt-1", Date: monday, StartTime: "10:00", EndTime: "11:00", Duration: 60, Status: model.AppointmentScheduled,
		}},
	})
	slots, err := r.DaySlots(monday, SlotOptions{StartHour: 8, EndHour: 18, IntervalMinutes: 30, Duration: 60})
	if err != nil {
		t.Fatalf("DaySlots: %v", err)
	}
	got := map[string]Status{}
	for _, s := range slots {
		got[s.StartTime] = s.Status
	}
	want := map[string]Status{
		"08:30": StatusUnavailable,
		"09:00": StatusAvailable,
		"09:30": StatusBusy,
		"10:30": StatusBusy,
		"11:00": StatusAvailable,
		"16:00": StatusAvailable,
		"16:30": StatusUnavailable,
	}
	for start, status := range want {
		if got[start] != status {
			t.Fatalf("%s: expected %s, got %s", start, status, got[start])
		}
	}
	if len(slots) != 20 {
		t.Fatalf("expected 20 candidates, got %d", len(slots))
	}
}
