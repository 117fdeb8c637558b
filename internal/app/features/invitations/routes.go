// internal/app/features/invitations/routes.go
package invitations

import "github.com/go-chi/chi/v5"

// AppRoutes is mounted at /invitations on the app surface.
func AppRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{token}", h.ServeView)
	r.Post("/{token}/accept", h.HandleAccept)
	return r
}

// AdminRoutes is mounted at /invitations on the admin surface.
func AdminRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	return r
}
