// Package validation normalizes incoming records and reports per-field
// problems as apperr.FieldErrors, keyed by the JSON field name.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

const (
	MinProblemLength      = 10
	MaxProblemLength      = 2000
	MinPasswordLength     = 6
	MaxDuration           = 8 * 60
	DefaultCustomDuration = 90
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ()-]{6,20}$`)
	currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)
)

const (
	msgRequired    = "Este campo es obligatorio."
	msgInvalidDate = "Fecha no válida (AAAA-MM-DD)."
	msgInvalidTime = "Hora no válida (HH:MM)."
)

// Email normalizes an address to lower case and reports whether it parses.
func Email(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return email, false
	}
	return email, true
}

func checkDate(f apperr.FieldErrors, field, value string, required bool) {
	if value == "" {
		if required {
			f.Add(field, msgRequired)
		}
		return
	}
	if _, err := availability.ParseDate(value); err != nil {
		f.Add(field, msgInvalidDate)
	}
}

func checkClock(f apperr.FieldErrors, field, value string) (availability.Clock, bool) {
	if value == "" {
		f.Add(field, msgRequired)
		return 0, false
	}
	c, err := availability.ParseClock(value)
	if err != nil {
		f.Add(field, msgInvalidTime)
		return 0, false
	}
	return c, true
}

func checkLength(f apperr.FieldErrors, field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		f.Add(field, "El texto es demasiado largo.")
	}
}

// ConsultationRequest is the funnel payload posted on ConfirmAndSubmit.
type ConsultationRequest struct {
	ProblemDescription string `json:"problemDescription"`
	PlanType           string `json:"planType"`
	PreferredDate      string `json:"preferredDate"`
	PreferredTime      string `json:"preferredTime"`
	Phone              string `json:"phone"`
	Company            string `json:"company"`
}

func (r *ConsultationRequest) Normalize() {
	r.ProblemDescription = strings.TrimSpace(r.ProblemDescription)
	r.PlanType = strings.TrimSpace(r.PlanType)
	r.PreferredDate = strings.TrimSpace(r.PreferredDate)
	r.PreferredTime = strings.TrimSpace(r.PreferredTime)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Company = strings.TrimSpace(r.Company)
}

func (r *ConsultationRequest) Validate() error {
	r.Normalize()
	f := apperr.FieldErrors{}
	switch n := utf8.RuneCountInString(r.ProblemDescription); {
	case n == 0:
		f.Add("problemDescription", "Describe brevemente tu problema.")
	case n < MinProblemLength:
		f.Add("problemDescription", "La descripción debe tener al menos 10 caracteres.")
	case n > MaxProblemLength:
		f.Add("problemDescription", "La descripción no puede superar los 2000 caracteres.")
	}
	plan, ok := model.ParsePlanType(r.PlanType)
	if !ok {
		f.Add("planType", "Selecciona un plan válido.")
	}
	if ok && plan.Scheduled() {
		checkDate(f, "preferredDate", r.PreferredDate, true)
		checkClock(f, "preferredTime", r.PreferredTime)
	}
	if r.Phone != "" && !phonePattern.MatchString(r.Phone) {
		f.Add("phone", "Teléfono no válido.")
	}
	checkLength(f, "company", r.Company, 200)
	return f.Err()
}

func Client(c *model.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Company = strings.TrimSpace(c.Company)
	c.Source = strings.TrimSpace(c.Source)
	f := apperr.FieldErrors{}
	if c.Name == "" {
		f.Add("name", msgRequired)
	}
	email, ok := Email(c.Email)
	c.Email = email
	if !ok {
		f.Add("email", "Correo electrónico no válido.")
	}
	if c.Phone != "" && !phonePattern.MatchString(c.Phone) {
		f.Add("phone", "Teléfono no válido.")
	}
	if c.Status == "" {
		c.Status = model.ClientLead
	} else if _, ok := model.ParseClientStatus(string(c.Status)); !ok {
		f.Add("status", "Estado no válido.")
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	for i := range c.Tags {
		c.Tags[i] = strings.TrimSpace(c.Tags[i])
	}
	return f.Err()
}

// Appointment checks the record shape and derives EndTime from StartTime and
// Duration. Slot availability is checked by the booking service.
func Appointment(a *model.Appointment) error {
	a.ClientID = strings.TrimSpace(a.ClientID)
	a.Date = strings.TrimSpace(a.Date)
	a.StartTime = strings.TrimSpace(a.StartTime)
	f := apperr.FieldErrors{}
	if a.ClientID == "" {
		f.Add("clientId", msgRequired)
	}
	checkDate(f, "date", a.Date, true)
	start, okStart := checkClock(f, "startTime", a.StartTime)
	if a.Duration <= 0 || a.Duration > MaxDuration {
		f.Add("duration", "La duración debe estar entre 1 y 480 minutos.")
	} else if okStart {
		end := start.Add(a.Duration)
		if end > availability.EndOfDay {
			f.Add("duration", "La cita no puede terminar después de medianoche.")
		} else {
			a.EndTime = end.String()
		}
	}
	if a.PlanType != "" {
		if _, ok := model.ParsePlanType(string(a.PlanType)); !ok {
			f.Add("planType", "Selecciona un plan válido.")
		}
	}
	if a.Status == "" {
		a.Status = model.AppointmentScheduled
	} else if _, ok := model.ParseAppointmentStatus(string(a.Status)); !ok {
		f.Add("status", "Estado no válido.")
	}
	return f.Err()
}

func AvailabilitySlot(s *model.AvailabilitySlot) error {
	s.Date = strings.TrimSpace(s.Date)
	s.RecurringPattern = strings.TrimSpace(s.RecurringPattern)
	s.RecurrenceEnd = strings.TrimSpace(s.RecurrenceEnd)
	f := apperr.FieldErrors{}
	start, okStart := checkClock(f, "startTime", s.StartTime)
	end, okEnd := checkClock(f, "endTime", s.EndTime)
	if okStart && okEnd && start >= end {
		f.Add("endTime", "La hora de fin debe ser posterior a la de inicio.")
	}
	checkDate(f, "date", s.Date, !s.IsRecurring)
	if s.IsRecurring {
		if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
			f.Add("dayOfWeek", "El día de la semana debe estar entre 0 (domingo) y 6 (sábado).")
		}
		if s.DayOfWeek == nil && s.RecurringPattern == "" && s.Date == "" {
			f.Add("dayOfWeek", "Indica el día de la semana o un patrón de repetición.")
		}
		if s.RecurringPattern != "" {
			if _, err := availability.ParseRecurrence(s.RecurringPattern, time.Time{}); err != nil {
				f.Add("recurringPattern", "Patrón de repetición no válido (RRULE).")
			}
		}
		checkDate(f, "recurrenceEnd", s.RecurrenceEnd, false)
		if s.Date != "" && s.RecurrenceEnd != "" && s.RecurrenceEnd < s.Date {
			f.Add("recurrenceEnd", "La fecha final no puede ser anterior a la inicial.")
		}
	} else {
		s.DayOfWeek = nil
		s.RecurringPattern = ""
		s.RecurrenceEnd = ""
	}
	return f.Err()
}

func BlockedPeriod(b *model.BlockedPeriod) error {
	b.StartDate = strings.TrimSpace(b.StartDate)
	b.EndDate = strings.TrimSpace(b.EndDate)
	b.Reason = strings.TrimSpace(b.Reason)
	f := apperr.FieldErrors{}
	checkDate(f, "startDate", b.StartDate, true)
	if b.EndDate == "" {
		b.EndDate = b.StartDate
	}
	checkDate(f, "endDate", b.EndDate, true)
	if b.EndDate < b.StartDate {
		f.Add("endDate", "La fecha final no puede ser anterior a la inicial.")
	}
	if b.IsAllDay {
		b.StartTime, b.EndTime = "", ""
	} else {
		start, okStart := checkClock(f, "startTime", strings.TrimSpace(b.StartTime))
		end, okEnd := checkClock(f, "endTime", strings.TrimSpace(b.EndTime))
		if okStart && okEnd && start >= end {
			f.Add("endTime", "La hora de fin debe ser posterior a la de inicio.")
		}
		b.StartTime, b.EndTime = strings.TrimSpace(b.StartTime), strings.TrimSpace(b.EndTime)
	}
	if b.Reason == "" {
		f.Add("reason", msgRequired)
	}
	checkLength(f, "reason", b.Reason, 500)
	return f.Err()
}

// Plan fills the custom plan's default duration and forces the free plan to
// zero minutes.
func Plan(p *model.Plan) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	f := apperr.FieldErrors{}
	plan, ok := model.ParsePlanType(string(p.Type))
	if !ok {
		f.Add("type", "Tipo de plan no válido.")
	}
	if p.Name == "" {
		f.Add("name", msgRequired)
	}
	switch {
	case !ok:
	case !plan.Scheduled():
		p.Duration = 0
	case plan == model.PlanCustom && p.Duration == 0:
		p.Duration = DefaultCustomDuration
	case p.Duration <= 0 || p.Duration > MaxDuration:
		f.Add("duration", "La duración debe estar entre 1 y 480 minutos.")
	}
	if p.PriceCents < 0 {
		f.Add("priceCents", "El precio no puede ser negativo.")
	}
	if p.Currency == "" {
		p.Currency = "eur"
	} else if !currencyPattern.MatchString(p.Currency) {
		f.Add("currency", "Moneda no válida (código ISO de 3 letras).")
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return f.Err()
}

// Template parses Subject and Body so broken placeholders are caught on save
// rather than on send.
func Template(t *model.MessageTemplate) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Category = strings.TrimSpace(t.Category)
	t.Subject = strings.TrimSpace(t.Subject)
	f := apperr.FieldErrors{}
	if t.Name == "" {
		f.Add("name", msgRequired)
	}
	if t.Category == "" {
		t.Category = "general"
	}
	if t.Subject == "" {
		f.Add("subject", msgRequired)
	} else if _, err := template.New("subject").Parse(t.Subject); err != nil {
		f.Add("subject", "La plantilla del asunto no es válida.")
	}
	if strings.TrimSpace(t.Body) == "" {
		f.Add("body", msgRequired)
	} else if _, err := template.New("body").Parse(t.Body); err != nil {
		f.Add("body", "La plantilla del mensaje no es válida.")
	}
	return f.Err()
}

func FollowUp(fu *model.FollowUp) error {
	fu.ClientID = strings.TrimSpace(fu.ClientID)
	fu.DueDate = strings.TrimSpace(fu.DueDate)
	fu.Note = strings.TrimSpace(fu.Note)
	f := apperr.FieldErrors{}
	if fu.ClientID == "" {
		f.Add("clientId", msgRequired)
	}
	checkDate(f, "dueDate", fu.DueDate, true)
	if fu.Note == "" {
		f.Add("note", msgRequired)
	}
	checkLength(f, "note", fu.Note, 2000)
	if fu.Status == "" {
		fu.Status = model.FollowUpPending
	} else if _, ok := model.ParseFollowUpStatus(string(fu.Status)); !ok {
		f.Add("status", "Estado no válido.")
	}
	return f.Err()
}
