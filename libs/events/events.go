// Package events holds the Kafka topics and JSON payloads the CRM services
// exchange. The topic name equals the event type.
package events

const (
	AppointmentScheduled       = "crm.appointment.scheduled.v1"
	AppointmentStatusChanged   = "crm.appointment.status_changed.v1"
	ConsultationCreated        = "crm.consultation.created.v1"
	ConsultationPaid           = "crm.consultation.paid.v1"
	PasswordResetRequested     = "crm.auth.password_reset_requested.v1"
	EmailVerificationRequested = "crm.auth.email_verification_requested.v1"
)

// NotifierTopics are the topics the notifier subscribes to.
var NotifierTopics = []string{
	AppointmentScheduled,
	AppointmentStatusChanged,
	ConsultationCreated,
	ConsultationPaid,
	PasswordResetRequested,
	EmailVerificationRequested,
}

type AppointmentPayload struct {
	AppointmentID  string `json:"appointment_id"`
	ConsultationID string `json:"consultation_id,omitempty"`
	ClientID       string `json:"client_id"`
	ClientName     string `json:"client_name"`
	ClientEmail    string `json:"client_email"`
	PlanType       string `json:"plan_type,omitempty"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Duration       int    `json:"duration"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	CancelReason   string `json:"cancel_reason,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

type ConsultationPayload struct {
	ConsultationID     string `json:"consultation_id"`
	ClientID           string `json:"client_id"`
	ClientName         string `json:"client_name"`
	ClientEmail        string `json:"client_email"`
	PlanType           string `json:"plan_type"`
	ProblemDescription string `json:"problem_description"`
	PreferredDate      string `json:"preferred_date,omitempty"`
	PreferredTime      string `json:"preferred_time,omitempty"`
	AppointmentID      string `json:"appointment_id,omitempty"`
	PaymentStatus      string `json:"payment_status"`
	AmountCents        int64  `json:"amount_cents"`
	Currency           string `json:"currency"`
	OccurredAt         string `json:"occurred_at"`
}

// AuthActionPayload carries a one-time link. The raw token travels only
// through the event stream and the e-mail; storage keeps its hash.
type AuthActionPayload struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ActionURL string `json:"action_url"`
	ExpiresAt string `json:"expires_at"`
}
