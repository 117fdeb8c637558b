// internal/app/features/logout/routes.go
package logout

import (
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /logout on every surface. Signed-out visitors may
// post here too; clearing cookies that do not exist is harmless.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeLogout)
	return r
}
