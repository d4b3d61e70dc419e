package model

import "time"

type ConsultationStatus string

const (
	ConsultationPending    ConsultationStatus = "pending"
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
	ConsultationCancelled  ConsultationStatus = "cancelled"
)

func ParseConsultationStatus(s string) (ConsultationStatus, bool) {
	switch st := ConsultationStatus(s); st {
	case ConsultationPending, ConsultationInProgress, ConsultationCompleted, ConsultationCancelled:
		return st, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentPaid        PaymentStatus = "paid"
)

// Consultation is a booking funnel submission.
type Consultation struct {
	ID                 string             `json:"id"`
	ClientID           string             `json:"clientId"`
	UserID             string             `json:"userId,omitempty"`
	ClientName         string             `json:"clientName"`
	ClientEmail        string             `json:"clientEmail"`
	ClientPhone        string             `json:"clientPhone,omitempty"`
	Company            string             `json:"company,omitempty"`
	ProblemDescription string             `json:"problemDescription"`
	PlanType           PlanType           `json:"planType"`
	PreferredDate      string             `json:"preferredDate,omitempty"`
	PreferredTime      string             `json:"preferredTime,omitempty"`
	AppointmentID      string             `json:"appointmentId,omitempty"`
	Status             ConsultationStatus `json:"status"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus"`
	CheckoutSessionID  string             `json:"checkoutSessionId,omitempty"`
	AmountCents        int64              `json:"amountCents"`
	Currency           string             `json:"currency"`
	Notes              string             `json:"notes,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}
