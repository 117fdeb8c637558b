// internal/app/features/organizations/handler.go
package organizations

import (
	"net/http"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler is the feature-level entry point for the organization switcher.
// It works from the memberships the tenant middleware already loaded.
type Handler struct {
	Tenants  *tenant.Resolver
	Targets  *router.Targets
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

// NewHandler constructs a new Organizations handler.
func NewHandler(tenants *tenant.Resolver, targets *router.Targets, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Tenants:  tenants,
		Targets:  targets,
		AuditLog: audit,
		Log:      logger,
	}
}

// ServeList handles GET /organizations: the switcher contents.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	viewdata.Render(w, http.StatusOK, viewdata.NewBaseVM(r, "Your organizations", "/"))
}

// HandleSwitch handles POST /organizations/switch. org_id must be one of the
// caller's active memberships; anything else is refused without touching the
// current selection.
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "")
		return
	}
	tc, ok := tenant.FromRequest(r)
	if !ok {
		uierrors.RenderStatus(w, r, http.StatusServiceUnavailable, uierrors.GenericMessage, "/")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(r.FormValue("org_id"))
	if err != nil {
		uierrors.RenderStatus(w, r, http.StatusBadRequest, "Choose an organization.", "/")
		return
	}
	if _, member := router.RoleIn(tc.Memberships, orgID); !member {
		h.Log.Warn("organization switch refused",
			zap.String("user_id", u.ID),
			zap.String("org_id", orgID.Hex()))
		uierrors.RenderForbidden(w, r, "You are not a member of that organization.", "/")
		return
	}

	if err := h.Tenants.SetActive(r, orgID); err != nil {
		h.Log.Warn("organization cookie dropped", zap.Error(err))
	}
	h.AuditLog.OrgSwitched(r.Context(), r, u.ID, orgID)

	dest := h.Targets.URL(router.Destination{Surface: subdomain.App, Path: router.PathRoot})
	if ret := r.FormValue("return"); ret != "" && h.Targets.SafeReturn(ret) {
		dest = ret
	}
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
