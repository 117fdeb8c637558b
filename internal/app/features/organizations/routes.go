// internal/app/features/organizations/routes.go
package organizations

import "github.com/go-chi/chi/v5"

// Routes mounts the switcher under /organizations on the app and admin
// surfaces. Access is already enforced by the surface guard.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/switch", h.HandleSwitch)
	return r
}
