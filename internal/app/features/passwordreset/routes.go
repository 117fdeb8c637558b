// internal/app/features/passwordreset/routes.go
package passwordreset

import "github.com/go-chi/chi/v5"

// Routes is mounted at /password.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/reset", h.ServeForm)
	r.Post("/reset", h.HandleRequest)
	return r
}
