package model

import "time"

type MessageTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CommunicationStatus string

const (
	CommunicationQueued CommunicationStatus = "queued"
	CommunicationSent   CommunicationStatus = "sent"
	CommunicationFailed CommunicationStatus = "failed"
)

type CommunicationLog struct {
	ID         string              `json:"id"`
	ClientID   string              `json:"clientId"`
	TemplateID string              `json:"templateId,omitempty"`
	Channel    string              `json:"channel"`
	Recipient  string              `json:"recipient"`
	Subject    string              `json:"subject"`
	Body       string              `json:"body"`
	Status     CommunicationStatus `json:"status"`
	Error      string              `json:"error,omitempty"`
	SentAt     *time.Time          `json:"sentAt,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpDone      FollowUpStatus = "done"
	FollowUpCancelled FollowUpStatus = "cancelled"
)

func ParseFollowUpStatus(s string) (FollowUpStatus, bool) {
	switch st := FollowUpStatus(s); st {
	case FollowUpPending, FollowUpDone, FollowUpCancelled:
		return st, true
	}
	return "", false
}

type FollowUp struct {
	ID             string         `json:"id"`
	ClientID       string         `json:"clientId"`
	ConsultationID string         `json:"consultationId,omitempty"`
	DueDate        string         `json:"dueDate"`
	Note           string         `json:"note"`
	Status         FollowUpStatus `json:"status"`
	NotifiedAt     *time.Time     `json:"notifiedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
