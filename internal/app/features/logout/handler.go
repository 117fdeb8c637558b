// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Tenants    *tenant.Resolver
	AuditLog   *auditlog.Logger
	Targets    *router.Targets
}

func NewHandler(sessionMgr *auth.SessionManager, tenants *tenant.Resolver, audit *auditlog.Logger, targets *router.Targets, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Tenants:    tenants,
		AuditLog:   audit,
		Targets:    targets,
	}
}

// ServeLogout handles POST /logout on every surface.
//
// The provider is told first so the refresh token cannot be replayed; a
// provider failure is logged and the local cookies are cleared anyway.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	surface, _ := subdomain.FromRequest(r)

	if s, ok := auth.CurrentSession(r); ok && s.AccessToken != "" {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "provider sign out")
		err := h.SessionMgr.Provider().SignOut(ctx, s.AccessToken)
		cancel()
		if err != nil {
			h.Log.Warn("provider sign out failed", zap.Error(err))
		}
	}

	h.SessionMgr.ClearSession(r)
	if h.Tenants != nil {
		if err := h.Tenants.Clear(r); err != nil {
			h.Log.Debug("organization cookie delete dropped", zap.Error(err))
		}
	}

	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID, string(surface))
	}

	dest := h.Targets.Login(surface)
	if d, err := router.LogoutTarget(surface); err == nil {
		dest = h.Targets.URL(d)
	}

	// HTMX handling: use HX-Redirect to force a client-side navigation.
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, dest, http.StatusSeeOther)
}
