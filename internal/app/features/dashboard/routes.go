// internal/app/features/dashboard/routes.go
package dashboard

import "github.com/go-chi/chi/v5"

// AppRoutes, AdminRoutes and OpsRoutes serve the root of each surface.
func AppRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeApp)
	return r
}

func AdminRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeAdmin)
	return r
}

func OpsRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeOps)
	return r
}
