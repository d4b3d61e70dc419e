package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
)

const (
	icsLookBack  = 30
	icsLookAhead = 180
)

func appointmentFilter(r *http.Request) (storage.AppointmentFilter, error) {
	p, err := page(r)
	if err != nil {
		return storage.AppointmentFilter{}, err
	}
	q := r.URL.Query()
	f := storage.AppointmentFilter{
		ClientID: strings.TrimSpace(q.Get("client_id")),
		From:     strings.TrimSpace(q.Get("from")),
		To:       strings.TrimSpace(q.Get("to")),
		Page:     p,
	}
	bad := apperr.FieldErrors{}
	if raw := q.Get("status"); raw != "" {
		st, ok := model.ParseAppointmentStatus(raw)
		if !ok {
			bad.Add("status", "Estado no válido.")
		}
		f.Status = st
	}
	for field, v := range map[string]string{"from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := availability.ParseDate(v); err != nil {
			bad.Add(field, "Fecha no válida (AAAA-MM-DD).")
		}
	}
	return f, bad.Err()
}

func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	f, err := appointmentFilter(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	items, err := h.appointments.List(r.Context(), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeList(w, items, f.Page)
}

func (h *AdminHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.appointments.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

type appointmentRequest struct {
	ClientID       string `json:"clientId"`
	ConsultationID string `json:"consultationId"`
	PlanType       string `json:"planType"`
	Date           string `json:"date"`
	StartTime      string `json:"startTime"`
	Duration       int    `json:"duration"`
	Status         string `json:"status"`
	Notes          string `json:"notes"`
}

// CreateAppointment books on behalf of a client. The slot is re-checked under
// the same lock the funnel uses.
func (h *AdminHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	a, err := h.booking.Book(r.Context(), model.Appointment{
		ClientID:       req.ClientID,
		ConsultationID: strings.TrimSpace(req.ConsultationID),
		PlanType:       model.PlanType(strings.TrimSpace(req.PlanType)),
		Date:           req.Date,
		StartTime:      req.StartTime,
		Duration:       req.Duration,
		Status:         model.AppointmentStatus(strings.TrimSpace(req.Status)),
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

type statusChange struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *AdminHandler) ChangeAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusChange
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	next, ok := model.ParseAppointmentStatus(strings.TrimSpace(req.Status))
	if !ok {
		fail(w, r, h.logger, apperr.Validation(apperr.FieldErrors{"status": "Estado no válido."}))
		return
	}
	a, err := h.booking.UpdateStatus(r.Context(), pathID(r), next, strings.TrimSpace(req.Reason))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *AdminHandler) UpdateAppointmentNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	a, err := h.booking.UpdateNotes(r.Context(), pathID(r), strings.TrimSpace(req.Notes))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *AdminHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.booking.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportAppointments renders an iCalendar feed. Without from/to it covers the
// last month and the next six.
func (h *AdminHandler) ExportAppointments(w http.ResponseWriter, r *http.Request) {
	f, err := appointmentFilter(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	today := h.now().In(h.booking.Location())
	if f.From == "" {
		f.From = today.AddDate(0, 0, -icsLookBack).Format(time.DateOnly)
	}
	if f.To == "" {
		f.To = today.AddDate(0, 0, icsLookAhead).Format(time.DateOnly)
	}
	appts, err := h.appointments.ListBetween(r.Context(), f.From, f.To)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if f.Status != "" || f.ClientID != "" {
		kept := appts[:0]
		for _, a := range appts {
			if (f.Status == "" || a.Status == f.Status) && (f.ClientID == "" || a.ClientID == f.ClientID) {
				kept = append(kept, a)
			}
		}
		appts = kept
	}
	feed, err := h.exporter.Export(appts)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="citas.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(feed))
}

// Calendar and single-slot checks for the dashboard. Without plan or
// duration they assume a 30-minute slot.

func (h *AdminHandler) adminDuration(r *http.Request) (int, error) {
	minutes, err := queryInt(r, "duration")
	if err != nil {
		return 0, err
	}
	plan := r.URL.Query().Get("plan")
	if minutes == 0 && plan == "" {
		return defaultAdminDuration, nil
	}
	return h.booking.Duration(r.Context(), plan, minutes)
}

func (h *AdminHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = h.now().In(h.booking.Location()).Format("2006-01")
	}
	duration, err := h.adminDuration(r)
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

func (h *AdminHandler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	duration, err := h.adminDuration(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	res, err := h.booking.Check(r.Context(), strings.TrimSpace(q.Get("date")), strings.TrimSpace(q.Get("time")), duration)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
