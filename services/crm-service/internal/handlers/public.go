package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/consultcrm/libs/auth"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/booking"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
)

// IdempotencyHeader lets the funnel retry a submission without booking twice.
const IdempotencyHeader = "Idempotency-Key"

type PlanLister interface {
	List(ctx context.Context, activeOnly bool) ([]model.Plan, error)
}

// PublicHandler serves the booking funnel.
type PublicHandler struct {
	booking *booking.Service
	plans   PlanLister
	logger  *slog.Logger
}

func NewPublicHandler(svc *booking.Service, plans PlanLister, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{booking: svc, plans: plans, logger: logger}
}

func (h *PublicHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), true)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

// slotDuration reads ?duration= or falls back to the duration of ?plan=.
func slotDuration(r *http.Request, svc *booking.Service) (int, error) {
	minutes, err := queryInt(r, "duration")
	if err != nil {
		return 0, err
	}
	return svc.Duration(r.Context(), r.URL.Query().Get("plan"), minutes)
}

type slotsResponse struct {
	Date     string                `json:"date"`
	Duration int                   `json:"duration"`
	Slots    []availability.Result `json:"slots"`
}

func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	duration, err := slotDuration(r, h.booking)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	slots, err := h.booking.Slots(r.Context(), date, duration, queryBool(r, "available"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	// Busy reasons are appointment ids and stay internal.
	for i := range slots {
		if slots[i].Status == availability.StatusBusy {
			slots[i].Reason = ""
		}
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{Date: date, Duration: duration, Slots: slots})
}

type calendarResponse struct {
	Month    string             `json:"month"`
	Duration int                `json:"duration"`
	Days     []availability.Day `json:"days"`
}

func (h *PublicHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	duration, err := slotDuration(r, h.booking)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	days, err := h.booking.Calendar(r.Context(), month, duration)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, calendarResponse{Month: month, Duration: duration, Days: days})
}

// SubmitConsultation must run behind auth.RequireAuth. A replayed
// Idempotency-Key answers 200 with the original consultation.
func (h *PublicHandler) SubmitConsultation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		fail(w, r, h.logger, apperr.Auth("auth/requires-recent-login"))
		return
	}
	var req validation.ConsultationRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	who := booking.Applicant{UserID: claims.UserID(), Name: claims.Name, Email: claims.Email}
	res, err := h.booking.Submit(r.Context(), who, req, strings.TrimSpace(r.Header.Get(IdempotencyHeader)))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, res)
}
