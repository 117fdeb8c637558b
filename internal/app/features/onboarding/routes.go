// internal/app/features/onboarding/routes.go
package onboarding

import "github.com/go-chi/chi/v5"

// Routes is mounted at /onboarding on the app surface.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/organization", h.ServeNew)
	r.Post("/organization", h.HandleCreate)
	return r
}
