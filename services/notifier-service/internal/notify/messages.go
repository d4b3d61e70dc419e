package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/events"
)

// ErrUnhandled means the event needs no e-mail.
var ErrUnhandled = errors.New("notify: no notification for event")

// Notification is one e-mail derived from an event. ClientID is set when the
// message belongs on a client's communication history. Retry marks e-mails
// whose failed delivery should send the event back for another attempt.
type Notification struct {
	Template string
	ClientID string
	Retry    bool
	Message  email.Message
}

const signature = "\n\nUn saludo,\nEl equipo de consultoría"

var (
	weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	months   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// longDate renders 2024-03-04 as "lunes 4 de marzo de 2024". Unparseable
// input is returned unchanged.
func longDate(date string) string {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s %d de %s de %d", weekdays[d.Weekday()], d.Day(), months[d.Month()-1], d.Year())
}

func money(cents int64, currency string) string {
	return fmt.Sprintf("%d,%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

func planLabel(plan string) string {
	switch plan {
	case "free":
		return "consulta gratuita por correo"
	case "30min":
		return "consulta de 30 minutos"
	case "60min":
		return "consulta de 60 minutos"
	case "custom":
		return "consulta personalizada"
	default:
		return "consulta"
	}
}

// Compose turns an event into the e-mails it triggers. adminEmail may be
// empty, in which case no admin copy is produced.
func Compose(eventType string, payload []byte, adminEmail string) ([]Notification, error) {
	switch eventType {
	case events.AppointmentScheduled:
		var p events.AppointmentPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return appointmentScheduled(p)
	case events.AppointmentStatusChanged:
		var p events.AppointmentPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return appointmentStatusChanged(p)
	case events.ConsultationCreated:
		var p events.ConsultationPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return consultationCreated(p, adminEmail)
	case events.ConsultationPaid:
		var p events.ConsultationPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return consultationPaid(p)
	case events.PasswordResetRequested:
		var p events.AuthActionPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return authAction(p, "password_reset",
			"Restablece tu contraseña",
			"Hemos recibido una solicitud para restablecer la contraseña de tu cuenta.\n\nPara elegir una nueva, abre este enlace:\n%s\n\nEl enlace caduca el %s. Si no has sido tú, ignora este mensaje.")
	case events.EmailVerificationRequested:
		var p events.AuthActionPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return authAction(p, "verify_email",
			"Confirma tu correo electrónico",
			"Gracias por registrarte. Confirma tu dirección de correo abriendo este enlace:\n%s\n\nEl enlace caduca el %s.")
	default:
		return nil, ErrUnhandled
	}
}

func decode(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("notify: decode payload: %w", err)
	}
	return nil
}

func requireRecipient(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("notify: event has no recipient")
	}
	return nil
}

func appointmentScheduled(p events.AppointmentPayload) ([]Notification, error) {
	if err := requireRecipient(p.ClientEmail); err != nil {
		return nil, err
	}
	body := fmt.Sprintf("Hola %s,\n\nTu %s ha quedado reservada para el %s de %s a %s.",
		p.ClientName, planLabel(p.PlanType), longDate(p.Date), p.StartTime, p.EndTime)
	body += "\n\nSi necesitas cambiarla, responde a este correo." + signature
	return []Notification{{
		Template: "appointment_scheduled",
		ClientID: p.ClientID,
		Message: email.Message{
			To:      p.ClientEmail,
			ToName:  p.ClientName,
			Subject: fmt.Sprintf("Cita reservada: %s a las %s", longDate(p.Date), p.StartTime),
			Body:    body,
		},
	}}, nil
}

func appointmentStatusChanged(p events.AppointmentPayload) ([]Notification, error) {
	if err := requireRecipient(p.ClientEmail); err != nil {
		return nil, err
	}
	when := fmt.Sprintf("%s a las %s", longDate(p.Date), p.StartTime)
	var subject, text string
	switch p.Status {
	case "confirmed":
		subject = "Cita confirmada: " + when
		text = fmt.Sprintf("Tu cita del %s está confirmada.", when)
	case "cancelled":
		subject = "Cita cancelada: " + when
		text = fmt.Sprintf("Tu cita del %s ha sido cancelada.", when)
		if reason := strings.TrimSpace(p.CancelReason); reason != "" {
			text += "\n\nMotivo: " + reason
		}
		text += "\n\nPuedes reservar un nuevo horario cuando quieras."
	case "completed":
		subject = "Gracias por tu consulta"
		text = "Gracias por confiar en nosotros. Si tienes cualquier duda sobre lo que hablamos, responde a este correo."
	default:
		return nil, ErrUnhandled
	}
	return []Notification{{
		Template: "appointment_" + p.Status,
		ClientID: p.ClientID,
		Message: email.Message{
			To:      p.ClientEmail,
			ToName:  p.ClientName,
			Subject: subject,
			Body:    fmt.Sprintf("Hola %s,\n\n%s%s", p.ClientName, text, signature),
		},
	}}, nil
}

func consultationCreated(p events.ConsultationPayload, adminEmail string) ([]Notification, error) {
	if err := requireRecipient(p.ClientEmail); err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Hemos recibido tu solicitud de %s.", planLabel(p.PlanType))
	if p.PreferredDate != "" && p.PreferredTime != "" {
		text += fmt.Sprintf(" Horario solicitado: %s a las %s.", longDate(p.PreferredDate), p.PreferredTime)
	}
	if p.PlanType == "free" {
		text += "\n\nTe responderemos por correo en un plazo de 48 horas."
	}
	if p.PaymentStatus == "pending" && p.AmountCents > 0 {
		text += fmt.Sprintf("\n\nImporte pendiente de pago: %s.", money(p.AmountCents, p.Currency))
	}
	out := []Notification{{
		Template: "consultation_received",
		ClientID: p.ClientID,
		Message: email.Message{
			To:      p.ClientEmail,
			ToName:  p.ClientName,
			Subject: "Hemos recibido tu solicitud",
			Body:    fmt.Sprintf("Hola %s,\n\n%s%s", p.ClientName, text, signature),
		},
	}}
	if adminEmail != "" {
		out = append(out, Notification{
			Template: "consultation_admin",
			Message: email.Message{
				To:      adminEmail,
				Subject: fmt.Sprintf("Nueva solicitud de %s (%s)", p.ClientName, p.PlanType),
				Body: fmt.Sprintf("Cliente: %s <%s>\nPlan: %s\n\n%s",
					p.ClientName, p.ClientEmail, planLabel(p.PlanType), p.ProblemDescription),
			},
		})
	}
	return out, nil
}

func consultationPaid(p events.ConsultationPayload) ([]Notification, error) {
	if err := requireRecipient(p.ClientEmail); err != nil {
		return nil, err
	}
	return []Notification{{
		Template: "consultation_paid",
		ClientID: p.ClientID,
		Message: email.Message{
			To:      p.ClientEmail,
			ToName:  p.ClientName,
			Subject: "Pago recibido",
			Body: fmt.Sprintf("Hola %s,\n\nHemos recibido tu pago de %s por la %s.%s",
				p.ClientName, money(p.AmountCents, p.Currency), planLabel(p.PlanType), signature),
		},
	}}, nil
}

func authAction(p events.AuthActionPayload, template, subject, format string) ([]Notification, error) {
	if err := requireRecipient(p.Email); err != nil {
		return nil, err
	}
	if p.ActionURL == "" {
		return nil, errors.New("notify: auth event has no action url")
	}
	expires := p.ExpiresAt
	if t, err := time.Parse(time.RFC3339, p.ExpiresAt); err == nil {
		expires = fmt.Sprintf("%s a las %s (UTC)", longDate(t.UTC().Format(time.DateOnly)), t.UTC().Format("15:04"))
	}
	return []Notification{{
		Template: template,
		Retry:    true,
		Message: email.Message{
			To:      p.Email,
			ToName:  p.Name,
			Subject: subject,
			Body:    fmt.Sprintf("Hola %s,\n\n"+format+"%s", p.Name, p.ActionURL, expires, signature),
		},
	}}, nil
}
