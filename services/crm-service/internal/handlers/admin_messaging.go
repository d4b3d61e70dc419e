package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"text/template"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/live"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
)

// Templates

func (h *AdminHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.messaging.ListTemplates(r.Context(), strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse[model.MessageTemplate]{Items: items})
}

func (h *AdminHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.messaging.GetTemplate(r.Context(), pathID(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *AdminHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.MessageTemplate
	if err := decode(r, &t); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := validation.Template(&t); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.messaging.InsertTemplate(r.Context(), &t); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

func (h *AdminHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.MessageTemplate
	if err := decode(r, &t); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	t.ID = pathID(r)
	if err := validation.Template(&t); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.messaging.UpdateTemplate(r.Context(), &t); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *AdminHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.messaging.DeleteTemplate(r.Context(), pathID(r)); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Communications

type communicationRequest struct {
	ClientID   string            `json:"clientId"`
	TemplateID string            `json:"templateId"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Variables  map[string]string `json:"variables"`
}

// render executes a template against the client's fields plus any extra
// variables. Unknown placeholders fail instead of printing "<no value>".
func render(name, text string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func templateData(c model.Client, extra map[string]string) map[string]any {
	data := map[string]any{
		"ClientName":  c.Name,
		"ClientEmail": c.Email,
		"Company":     c.Company,
		"Phone":       c.Phone,
	}
	for k, v := range extra {
		if _, builtin := data[k]; !builtin {
			data[k] = v
		}
	}
	return data
}

// SendCommunication renders a stored template (or an ad hoc subject and body)
// for a client, e-mails it and logs the attempt. A failed delivery is logged
// with status failed and still answers 201.
func (h *AdminHandler) SendCommunication(w http.ResponseWriter, r *http.Request) {
	var req communicationRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.TemplateID = strings.TrimSpace(req.TemplateID)
	if req.ClientID == "" {
		fail(w, r, h.logger, apperr.Validation(apperr.FieldErrors{"clientId": "Este campo es obligatorio."}))
		return
	}
	client, err := h.clients.Get(ctx, req.ClientID)
	if err != nil {
		if db.IsNotFound(err) {
			err = apperr.Validation(apperr.FieldErrors{"clientId": "El cliente no existe."})
		}
		fail(w, r, h.logger, err)
		return
	}

	subject, body := req.Subject, req.Body
	if req.TemplateID != "" {
		t, err := h.messaging.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			if db.IsNotFound(err) {
				err = apperr.Validation(apperr.FieldErrors{"templateId": "La plantilla no existe."})
			}
			fail(w, r, h.logger, err)
			return
		}
		if !t.IsActive {
			fail(w, r, h.logger, apperr.Validation(apperr.FieldErrors{"templateId": "La plantilla está desactivada."}))
			return
		}
		if strings.TrimSpace(subject) == "" {
			subject = t.Subject
		}
		if strings.TrimSpace(body) == "" {
			body = t.Body
		}
	}
	bad := apperr.FieldErrors{}
	data := templateData(client, req.Variables)
	renderedSubject, err := render("subject", subject, data)
	if err != nil || strings.TrimSpace(renderedSubject) == "" {
		bad.Add("subject", "No se pudo generar el asunto del mensaje.")
	}
	renderedBody, err := render("body", body, data)
	if err != nil || strings.TrimSpace(renderedBody) == "" {
		bad.Add("body", "No se pudo generar el mensaje.")
	}
	if err := bad.Err(); err != nil {
		fail(w, r, h.logger, err)
		return
	}

	entry := model.CommunicationLog{
		ClientID:   client.ID,
		TemplateID: req.TemplateID,
		Channel:    "email",
		Recipient:  client.Email,
		Subject:    strings.TrimSpace(renderedSubject),
		Body:       renderedBody,
		Status:     model.CommunicationSent,
	}
	sendErr := h.mailer.Send(ctx, email.Message{
		To:      client.Email,
		ToName:  client.Name,
		Subject: entry.Subject,
		Body:    entry.Body,
	})
	if sendErr != nil {
		entry.Status = model.CommunicationFailed
		entry.Error = sendErr.Error()
		h.logger.WarnContext(ctx, "communication not delivered", "client_id", client.ID, "provider", h.mailer.ProviderID(), "err", sendErr)
	} else {
		sent := h.now().UTC()
		entry.SentAt = &sent
	}
	if err := h.messaging.InsertLog(ctx, &entry); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(ctx, live.TopicClients, "communication.logged", client.ID, entry)
	httpx.WriteJSON(w, http.StatusCreated, entry)
}

func (h *AdminHandler) ListCommunications(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if id := pathID(r); id != "" {
		clientID = id
	}
	items, err := h.messaging.ListLogs(r.Context(), clientID, p)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeList(w, items, p)
}

// Follow-ups

func (h *AdminHandler) ListFollowUps(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	f := storage.FollowUpFilter{
		ClientID:  strings.TrimSpace(q.Get("client_id")),
		DueBefore: strings.TrimSpace(q.Get("due_before")),
		Page:      p,
	}
	if raw := q.Get("status"); raw != "" {
		st, ok := model.ParseFollowUpStatus(raw)
		if !ok {
			fail(w, r, h.logger, apperr.Validation(apperr.FieldErrors{"status": "Estado no válido."}))
			return
		}
		f.Status = st
	}
	items, err := h.messaging.ListFollowUps(r.Context(), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeList(w, items, p)
}

func (h *AdminHandler) CreateFollowUp(w http.ResponseWriter, r *http.Request) {
	var f model.FollowUp
	if err := decode(r, &f); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := validation.FollowUp(&f); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.messaging.InsertFollowUp(r.Context(), &f); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicFollowUps, "follow_up.created", f.ID, f)
	httpx.WriteJSON(w, http.StatusCreated, f)
}

func (h *AdminHandler) UpdateFollowUp(w http.ResponseWriter, r *http.Request) {
	var f model.FollowUp
	if err := decode(r, &f); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	current, err := h.messaging.GetFollowUp(ctx, pathID(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	f.ID = current.ID
	f.ClientID = current.ClientID
	if err := validation.FollowUp(&f); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.messaging.UpdateFollowUp(ctx, &f); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	f.NotifiedAt = current.NotifiedAt
	h.live.Publish(ctx, live.TopicFollowUps, "follow_up.updated", f.ID, f)
	httpx.WriteJSON(w, http.StatusOK, f)
}

func (h *AdminHandler) DeleteFollowUp(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := h.messaging.DeleteFollowUp(r.Context(), id); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.live.Publish(r.Context(), live.TopicFollowUps, "follow_up.deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
