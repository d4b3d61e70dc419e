// Package calendar renders appointments as an iCalendar feed for the admin's
// calendar client.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

const productID = "-//consultcrm//appointments//ES"

type Exporter struct {
	loc    *time.Location
	name   string
	domain string
}

// NewExporter places appointment wall-clock times in loc. domain suffixes
// event UIDs so they stay stable across exports.
func NewExporter(loc *time.Location, calendarName, domain string) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	if domain == "" {
		domain = "consultcrm.local"
	}
	return &Exporter{loc: loc, name: calendarName, domain: domain}
}

func (e *Exporter) Export(appts []model.Appointment) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if e.name != "" {
		cal.SetXWRCalName(e.name)
	}
	cal.SetXWRTimezone(e.loc.String())

	for _, a := range appts {
		start, end, err := e.bounds(a)
		if err != nil {
			return "", fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		ev := cal.AddEvent(a.ID + "@" + e.domain)
		ev.SetDtStampTime(a.UpdatedAt.UTC())
		ev.SetCreatedTime(a.CreatedAt.UTC())
		ev.SetModifiedAt(a.UpdatedAt.UTC())
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(summary(a))
		ev.SetDescription(description(a))
		ev.SetStatus(eventStatus(a.Status))
		if a.ClientEmail != "" {
			ev.AddAttendee(a.ClientEmail, ical.WithCN(a.ClientName))
		}
	}
	return cal.Serialize(), nil
}

func (e *Exporter) bounds(a model.Appointment) (time.Time, time.Time, error) {
	startClock, err := availability.ParseClock(a.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := availability.On(a.Date, startClock, e.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(time.Duration(a.Duration) * time.Minute), nil
}

func summary(a model.Appointment) string {
	return fmt.Sprintf("Consulta %s: %s", planLabel(a.PlanType), a.ClientName)
}

func description(a model.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cliente: %s <%s>\n", a.ClientName, a.ClientEmail)
	fmt.Fprintf(&b, "Estado: %s\n", a.Status)
	if a.Notes != "" {
		fmt.Fprintf(&b, "Notas: %s\n", a.Notes)
	}
	if a.CancelReason != "" {
		fmt.Fprintf(&b, "Motivo de cancelación: %s\n", a.CancelReason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func planLabel(p model.PlanType) string {
	switch p {
	case model.Plan30Min:
		return "30 min"
	case model.Plan60Min:
		return "60 min"
	case model.PlanCustom:
		return "personalizada"
	}
	return string(p)
}

func eventStatus(s model.AppointmentStatus) ical.ObjectStatus {
	switch s {
	case model.AppointmentScheduled:
		return ical.ObjectStatusTentative
	case model.AppointmentCancelled, model.AppointmentNoShow:
		return ical.ObjectStatusCancelled
	}
	return ical.ObjectStatusConfirmed
}
