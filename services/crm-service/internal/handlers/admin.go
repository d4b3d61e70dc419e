package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/booking"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/calendar"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/live"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
)

const defaultAdminDuration = 30

type AdminDeps struct {
	Mailer   email.Sender
	Live     live.Publisher
	Exporter *calendar.Exporter
}

// AdminHandler backs the dashboard. Routes must run behind
// auth.RequireAuth and auth.RequireRole(auth.RoleAdmin).
type AdminHandler struct {
	booking       *booking.Service
	consultations *storage.ConsultationRepository
	clients       *storage.ClientRepository
	appointments  *storage.AppointmentRepository
	availability  *storage.AvailabilityRepository
	plans         *storage.PlanRepository
	messaging     *storage.MessagingRepository
	mailer        email.Sender
	live          live.Publisher
	exporter      *calendar.Exporter
	logger        *slog.Logger
	now           func() time.Time
}

func NewAdminHandler(conn db.DBTX, svc *booking.Service, deps AdminDeps, logger *slog.Logger) *AdminHandler {
	if deps.Mailer == nil {
		deps.Mailer = email.NewLogSender(logger)
	}
	if deps.Live == nil {
		deps.Live = live.Nop{}
	}
	if deps.Exporter == nil {
		deps.Exporter = calendar.NewExporter(svc.Location(), "Consultas", "consultcrm.local")
	}
	return &AdminHandler{
		booking:       svc,
		consultations: storage.NewConsultationRepository(conn),
		clients:       storage.NewClientRepository(conn),
		appointments:  storage.NewAppointmentRepository(conn),
		availability:  storage.NewAvailabilityRepository(conn),
		plans:         storage.NewPlanRepository(conn),
		messaging:     storage.NewMessagingRepository(conn),
		mailer:        deps.Mailer,
		live:          deps.Live,
		exporter:      deps.Exporter,
		logger:        logger,
		now:           time.Now,
	}
}

// Consultations

func (h *AdminHandler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	f := storage.ConsultationFilter{
		ClientID: strings.TrimSpace(q.Get("client_id")),
		Query:    strings.TrimSpace(q.Get("q")),
		Page:     p,
	}
	bad := apperr.FieldErrors{}
	if raw := q.Get("status"); raw != "" {
		st, ok := model.ParseConsultationStatus(raw)
		if !ok {
			bad.Add("status", "Estado no válido.")
		}
		f.Status = st
	}
	if raw := q.Get("plan"); raw != "" {
		pt, ok := model.ParsePlanType(raw)
		if !ok {
			bad.Add("plan", "Plan no válido.")
		}
		f.PlanType = pt
	}
	if err := bad.Err(); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	items, err := h.consultations.List(r.Context(), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeList(w, items, p)
}

func (h *AdminHandler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	c, err := h.consultations.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

type consultationUpdate struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

// UpdateConsultation changes status and notes; omitted fields keep their
// stored value.
func (h *AdminHandler) UpdateConsultation(w http.ResponseWriter, r *http.Request) {
	var req consultationUpdate
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	current, err := h.consultations.Get(ctx, pathID(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	status, notes := current.Status, current.Notes
	if req.Status != "" {
		st, ok := model.ParseConsultationStatus(req.Status)
		if !ok {
			fail(w, r, h.logger, apperr.Validation(apperr.FieldErrors{"status": "Estado no válido."}))
			return
		}
		status = st
	}
	if req.Notes != nil {
		notes = strings.TrimSpace(*req.Notes)
	}
	updated, err := h.consultations.Update(ctx, current.ID, status, notes)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(ctx, live.TopicConsultations, "consultation.updated", updated.ID, updated)
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteConsultation(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := h.consultations.Delete(r.Context(), id); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicConsultations, "consultation.deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Clients

func (h *AdminHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	f := storage.ClientFilter{Query: strings.TrimSpace(r.URL.Query().Get("q")), Page: p}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := model.ParseClientStatus(raw)
		if !ok {
			fail(w, r, h.logger, apperr.Validation(apperr.FieldErrors{"status": "Estado no válido."}))
			return
		}
		f.Status = st
	}
	items, err := h.clients.List(r.Context(), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeList(w, items, p)
}

func (h *AdminHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func duplicateEmail(err error) error {
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("client/duplicate-email", "Ya existe un cliente con este correo.",
			apperr.FieldErrors{"email": "Ya existe un cliente con este correo."})
	}
	return err
}

func (h *AdminHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var c model.Client
	if err := decode(r, &c); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if c.Source == "" {
		c.Source = "admin"
	}
	if err := validation.Client(&c); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.clients.Insert(r.Context(), &c); err != nil {
		fail(w, r, h.logger, duplicateEmail(err))
		return
	}
	h.live.Publish(r.Context(), live.TopicClients, "client.created", c.ID, c)
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *AdminHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var c model.Client
	if err := decode(r, &c); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	c.ID = pathID(r)
	if err := validation.Client(&c); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.clients.Update(r.Context(), &c); err != nil {
		fail(w, r, h.logger, duplicateEmail(err))
		return
	}
	h.live.Publish(r.Context(), live.TopicClients, "client.updated", c.ID, c)
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := h.clients.Delete(r.Context(), id); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicClients, "client.deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
