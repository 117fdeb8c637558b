// internal/app/features/members/routes.go
package members

import "github.com/go-chi/chi/v5"

// Routes is mounted at /members on the admin surface.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/{userID}/role", h.HandleChangeRole)
	r.Post("/{userID}/remove", h.HandleRemove)
	return r
}
