package router

import (
	"net/http"
	"net/url"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"go.uber.org/zap"
)

// InputFromRequest assembles the routing Input from what the session bridge,
// tenant resolver and subdomain middleware stored on r. ready is false when a
// user is signed in but their memberships could not be loaded.
func InputFromRequest(r *http.Request) (in Input, ready bool) {
	in.Surface, _ = subdomain.FromRequest(r)
	in.Path = r.URL.Path

	user, ok := auth.CurrentUser(r)
	if !ok {
		return in, true
	}
	in.SignedIn = true
	in.IsOps = user.IsOps

	tc, ok := tenant.FromRequest(r)
	if !ok {
		return in, false
	}
	in.Memberships = tc.Memberships
	in.ActiveOrganization = tc.OrganizationID
	return in, true
}

// Guard enforces Decide on every request it wraps.
//   - unknown surface: 404
//   - memberships unavailable on app/admin: 503
//   - denied: HX-Redirect for HTMX, 303 otherwise
func Guard(t *Targets, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			in, ready := InputFromRequest(r)
			if !ready && (in.Surface == subdomain.App || in.Surface == subdomain.Admin) {
				http.Error(w, "Something went wrong. Please try again.", http.StatusServiceUnavailable)
				return
			}

			d, err := Decide(in)
			if err != nil {
				logger.Debug("no routing rules for surface", zap.String("surface", string(in.Surface)))
				http.NotFound(w, r)
				return
			}
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}

			dest := t.URL(d.Redirect)
			if !in.SignedIn {
				dest += "?return=" + url.QueryEscape(t.URL(Destination{Surface: in.Surface, Path: r.URL.RequestURI()}))
			}
			logger.Debug("redirecting visitor",
				zap.String("surface", string(in.Surface)),
				zap.String("path", in.Path),
				zap.String("to", d.Redirect.String()))

			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", dest)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			http.Redirect(w, r, dest, http.StatusSeeOther)
		})
	}
}
