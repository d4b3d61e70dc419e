package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/live"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
)

func (h *AdminHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.availability.ListRules(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse[model.AvailabilitySlot]{Items: rules})
}

func (h *AdminHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var s model.AvailabilitySlot
	if err := decode(r, &s); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := validation.AvailabilitySlot(&s); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.availability.InsertRule(r.Context(), &s); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicAvailability, "availability.created", s.ID, s)
	httpx.WriteJSON(w, http.StatusCreated, s)
}

func (h *AdminHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var s model.AvailabilitySlot
	if err := decode(r, &s); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	s.ID = pathID(r)
	if err := validation.AvailabilitySlot(&s); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.availability.UpdateRule(r.Context(), &s); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicAvailability, "availability.updated", s.ID, s)
	httpx.WriteJSON(w, http.StatusOK, s)
}

func (h *AdminHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := h.availability.DeleteRule(r.Context(), id); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicAvailability, "availability.deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.availability.ListBlocked(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse[model.BlockedPeriod]{Items: blocks})
}

func (h *AdminHandler) CreateBlocked(w http.ResponseWriter, r *http.Request) {
	var b model.BlockedPeriod
	if err := decode(r, &b); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := validation.BlockedPeriod(&b); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.availability.InsertBlocked(r.Context(), &b); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicAvailability, "blocked_period.created", b.ID, b)
	httpx.WriteJSON(w, http.StatusCreated, b)
}

func (h *AdminHandler) UpdateBlocked(w http.ResponseWriter, r *http.Request) {
	var b model.BlockedPeriod
	if err := decode(r, &b); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	b.ID = pathID(r)
	if err := validation.BlockedPeriod(&b); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.availability.UpdateBlocked(r.Context(), &b); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicAvailability, "blocked_period.updated", b.ID, b)
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *AdminHandler) DeleteBlocked(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := h.availability.DeleteBlocked(r.Context(), id); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicAvailability, "blocked_period.deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Plans

func (h *AdminHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), false)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse[model.Plan]{Items: plans})
}

func duplicatePlan(err error) error {
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("plan/duplicate-type", "Ya existe un plan de este tipo.",
			apperr.FieldErrors{"type": "Ya existe un plan de este tipo."})
	}
	return err
}

func (h *AdminHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var p model.Plan
	if err := decode(r, &p); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := validation.Plan(&p); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.plans.Insert(r.Context(), &p); err != nil {
		fail(w, r, h.logger, duplicatePlan(err))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var p model.Plan
	if err := decode(r, &p); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p.ID = pathID(r)
	if err := validation.Plan(&p); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.plans.Update(r.Context(), &p); err != nil {
		fail(w, r, h.logger, duplicatePlan(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
