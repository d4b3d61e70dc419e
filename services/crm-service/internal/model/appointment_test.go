package model

import "testing"

func TestAppointmentTransitions(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{AppointmentScheduled, AppointmentConfirmed, true},
		{AppointmentScheduled, AppointmentCancelled, true},
		{AppointmentScheduled, AppointmentNoShow, true},
		{AppointmentScheduled, AppointmentCompleted, false},
		{AppointmentConfirmed, AppointmentCompleted, true},
		{AppointmentConfirmed, AppointmentNoShow, true},
		{AppointmentConfirmed, AppointmentScheduled, false},
		{AppointmentCompleted, AppointmentCancelled, false},
		{AppointmentCancelled, AppointmentScheduled, false},
		{AppointmentNoShow, AppointmentConfirmed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalAndBlocking(t *testing.T) {
	for _, st := range []AppointmentStatus{AppointmentCompleted, AppointmentCancelled, AppointmentNoShow} {
		if !st.Terminal() {
			t.Fatalf("%s should be terminal", st)
		}
	}
	if AppointmentCancelled.Blocking() || AppointmentNoShow.Blocking() {
		t.Fatal("cancelled and no-show appointments must free their slot")
	}
	if !AppointmentScheduled.Blocking() || !AppointmentConfirmed.Blocking() {
		t.Fatal("active appointments must occupy their slot")
	}
	if _, ok := ParseAppointmentStatus("booked"); ok {
		t.Fatal("unknown status must not parse")
	}
}

func TestPlanScheduled(t *testing.T) {
	if PlanFree.Scheduled() {
		t.Fatal("free plan has no calendar slot")
	}
	for _, p := range []PlanType{Plan30Min, Plan60Min, PlanCustom} {
		if !p.Scheduled() {
			t.Fatalf("%s should be scheduled", p)
		}
	}
}
