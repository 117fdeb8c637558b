// internal/app/features/oauth/routes.go
package oauth

import "github.com/go-chi/chi/v5"

// Routes is mounted at /auth on the www surface.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/oauth/{provider}", h.ServeStart)
	r.Get("/callback", h.ServeCallback)
	r.Post("/session", h.HandleSetSession)
	return r
}
