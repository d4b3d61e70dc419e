package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/auth"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
)

type RouterConfig struct {
	Issuer  *auth.Issuer
	Public  *PublicHandler
	Auth    *AuthHandler
	Admin   *AdminHandler
	Webhook *WebhookHandler
	// Live is the websocket endpoint; it is mounted outside the timeout.
	Live http.Handler
	// RateLimit guards the public and auth routes when set.
	RateLimit      httpx.Middleware
	RequestTimeout time.Duration
}

// NewRouter mounts every /api/v1 route.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	limit := cfg.RateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	timeout := httpx.WithTimeout(cfg.RequestTimeout)
	requireAuth := cfg.Issuer.RequireAuth

	r := chi.NewRouter()
	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(g chi.Router) {
			g.Use(timeout)

			g.Route("/public", func(pub chi.Router) {
				pub.Use(limit)
				pub.Get("/plans", cfg.Public.Plans)
				pub.Get("/slots", cfg.Public.Slots)
				pub.Get("/calendar", cfg.Public.Calendar)
				pub.With(requireAuth).Post("/consultations", cfg.Public.SubmitConsultation)
			})

			g.Route("/auth", func(a chi.Router) {
				a.Use(limit)
				a.Post("/register", cfg.Auth.Register)
				a.Post("/login", cfg.Auth.Login)
				a.Post("/password-reset", cfg.Auth.RequestPasswordReset)
				a.Post("/password-reset/confirm", cfg.Auth.ConfirmPasswordReset)
				a.Post("/verify-email/confirm", cfg.Auth.ConfirmEmailVerification)
				a.Group(func(signedIn chi.Router) {
					signedIn.Use(requireAuth)
					signedIn.Get("/me", cfg.Auth.Me)
					signedIn.Post("/verify-email", cfg.Auth.RequestEmailVerification)
				})
			})

			if cfg.Webhook != nil {
				g.Post("/payments/stripe/webhook", cfg.Webhook.Stripe)
			}
		})

		api.Route("/admin", func(adm chi.Router) {
			adm.Use(requireAuth, auth.RequireRole(auth.RoleAdmin))
			if cfg.Live != nil {
				adm.Get("/live", cfg.Live.ServeHTTP)
			}
			adm.Group(func(g chi.Router) {
				g.Use(timeout)
				mountAdmin(g, cfg.Admin)
			})
		})
	})
	return r
}

func mountAdmin(r chi.Router, h *AdminHandler) {
	r.Route("/consultations", func(r chi.Router) {
		r.Get("/", h.ListConsultations)
		r.Get("/{id}", h.GetConsultation)
		r.Patch("/{id}", h.UpdateConsultation)
		r.Delete("/{id}", h.DeleteConsultation)
	})
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.ListClients)
		r.Post("/", h.CreateClient)
		r.Get("/{id}", h.GetClient)
		r.Put("/{id}", h.UpdateClient)
		r.Delete("/{id}", h.DeleteClient)
		r.Get("/{id}/communications", h.ListCommunications)
	})
	r.Get("/appointments.ics", h.ExportAppointments)
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.ListAppointments)
		r.Post("/", h.CreateAppointment)
		r.Get("/{id}", h.GetAppointment)
		r.Patch("/{id}/status", h.ChangeAppointmentStatus)
		r.Patch("/{id}/notes", h.UpdateAppointmentNotes)
		r.Delete("/{id}", h.DeleteAppointment)
	})
	r.Route("/availability", func(r chi.Router) {
		r.Get("/", h.ListRules)
		r.Post("/", h.CreateRule)
		r.Get("/check", h.CheckSlot)
		r.Put("/{id}", h.UpdateRule)
		r.Delete("/{id}", h.DeleteRule)
	})
	r.Route("/blocked-periods", func(r chi.Router) {
		r.Get("/", h.ListBlocked)
		r.Post("/", h.CreateBlocked)
		r.Put("/{id}", h.UpdateBlocked)
		r.Delete("/{id}", h.DeleteBlocked)
	})
	r.Get("/calendar", h.Calendar)
	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.ListPlans)
		r.Post("/", h.CreatePlan)
		r.Put("/{id}", h.UpdatePlan)
		r.Delete("/{id}", h.DeletePlan)
	})
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Post("/", h.CreateTemplate)
		r.Get("/{id}", h.GetTemplate)
		r.Put("/{id}", h.UpdateTemplate)
		r.Delete("/{id}", h.DeleteTemplate)
	})
	r.Route("/communications", func(r chi.Router) {
		r.Get("/", h.ListCommunications)
		r.Post("/", h.SendCommunication)
	})
	r.Route("/follow-ups", func(r chi.Router) {
		r.Get("/", h.ListFollowUps)
		r.Post("/", h.CreateFollowUp)
		r.Put("/{id}", h.UpdateFollowUp)
		r.Delete("/{id}", h.DeleteFollowUp)
	})
}
