package model

import "time"

type ClientStatus string

const (
	ClientLead     ClientStatus = "lead"
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

func ParseClientStatus(s string) (ClientStatus, bool) {
	switch st := ClientStatus(s); st {
	case ClientLead, ClientActive, ClientInactive:
		return st, true
	}
	return "", false
}

type Client struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone,omitempty"`
	Company   string       `json:"company,omitempty"`
	Status    ClientStatus `json:"status"`
	Source    string       `json:"source,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	Tags      []string     `json:"tags"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
