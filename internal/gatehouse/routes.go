package gatehouse

import "github.com/go-chi/chi/v5"

// Routes mounts the guard API under /v1.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/check", h.Check)
		r.Get("/ratelimit/status", h.RateLimitStatus)
		r.Delete("/ratelimit/{key}", h.RateLimitReset)
		r.Get("/audit", h.AuditTimeline)
		r.Get("/audit/export.csv", h.AuditExport)
		r.Post("/audit/retention", h.AuditRetentionSweep)
	})
}
