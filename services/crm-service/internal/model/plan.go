package model

import "time"

type PlanType string

const (
	PlanFree   PlanType = "free"
	Plan30Min  PlanType = "30min"
	Plan60Min  PlanType = "60min"
	PlanCustom PlanType = "custom"
)

func ParsePlanType(s string) (PlanType, bool) {
	switch p := PlanType(s); p {
	case PlanFree, Plan30Min, Plan60Min, PlanCustom:
		return p, true
	}
	return "", false
}

// Scheduled reports whether the plan books a calendar slot. The free plan is
// answered by e-mail.
func (p PlanType) Scheduled() bool {
	return p != PlanFree && p != ""
}

type Plan struct {
	ID          string    `json:"id"`
	Type        PlanType  `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Duration    int       `json:"duration"`
	PriceCents  int64     `json:"priceCents"`
	Currency    string    `json:"currency"`
	Features    []string  `json:"features"`
	IsActive    bool      `json:"isActive"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Plan) Paid() bool { return p.PriceCents > 0 }
