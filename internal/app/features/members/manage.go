// internal/app/features/members/manage.go
package members

import (
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/policy/memberpolicy"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func policyMessage(err error) string {
	switch {
	case errors.Is(err, memberpolicy.ErrOwnerProtected):
		return "Only owners can change another owner."
	case errors.Is(err, memberpolicy.ErrOwnerGrant):
		return "Only owners can grant ownership."
	default:
		return "Only owners and admins can manage members."
	}
}

// scope returns the caller, the tenant, and the target membership, or writes
// the error page.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*models.User, tenant.Context, models.Membership, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "")
		return nil, tenant.Context{}, models.Membership{}, false
	}
	tc, ok := tenant.FromRequest(r)
	if !ok || !tc.HasOrganization() {
		uierrors.RenderForbidden(w, r, "Choose an organization first.", "/")
		return nil, tc, models.Membership{}, false
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load member")
	defer cancel()
	m, err := h.Memberships.Get(ctx, tc.OrganizationID, chi.URLParam(r, "userID"))
	if errors.Is(err, membershipstore.ErrNotMember) {
		uierrors.RenderStatus(w, r, http.StatusNotFound, "That person is not a member of this organization.", "/members")
		return nil, tc, m, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "members: load failed", err, "", "/members")
		return nil, tc, m, false
	}
	if err := memberpolicy.CanManage(tc.Role, m.Role); err != nil {
		uierrors.RenderForbidden(w, r, policyMessage(err), "/members")
		return nil, tc, m, false
	}
	return u, tc, m, true
}

// writeStoreError maps membership store refusals to pages.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, membershipstore.ErrLastOwner):
		uierrors.RenderStatus(w, r, http.StatusConflict, "An organization must keep at least one owner.", "/members")
	case errors.Is(err, membershipstore.ErrBadRole):
		uierrors.RenderStatus(w, r, http.StatusBadRequest, err.Error(), "/members")
	case errors.Is(err, membershipstore.ErrNotMember):
		uierrors.RenderStatus(w, r, http.StatusNotFound, "That person is not a member of this organization.", "/members")
	default:
		h.ErrLog.LogServerError(w, r, "members: "+op+" failed", err, "", "/members")
	}
}

// HandleChangeRole handles POST /members/{userID}/role.
func (h *Handler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	u, tc, m, ok := h.scope(w, r)
	if !ok {
		return
	}
	role := models.Role(strings.TrimSpace(r.FormValue("role")))
	if err := memberpolicy.CanAssign(tc.Role, role); err != nil {
		uierrors.RenderForbidden(w, r, policyMessage(err), "/members")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "change role")
	defer cancel()
	if err := h.Memberships.ChangeRole(ctx, tc.OrganizationID, m.UserID, role); err != nil {
		h.writeStoreError(w, r, "change role", err)
		return
	}

	h.AuditLog.MemberRoleChanged(r.Context(), r, u.ID, m.UserID, tc.OrganizationID, string(role))
	h.Log.Info("member role changed",
		zap.String("org_id", tc.OrganizationID.Hex()),
		zap.String("user_id", m.UserID),
		zap.String("from", string(m.Role)),
		zap.String("to", string(role)))
	http.Redirect(w, r, "/members", http.StatusSeeOther)
}

// HandleRemove handles POST /members/{userID}/remove. Removal is soft.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	u, tc, m, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "remove member")
	defer cancel()
	if err := h.Memberships.SoftDelete(ctx, tc.OrganizationID, m.UserID); err != nil {
		h.writeStoreError(w, r, "remove", err)
		return
	}

	h.AuditLog.MemberRemoved(r.Context(), r, u.ID, m.UserID, tc.OrganizationID)
	http.Redirect(w, r, "/members", http.StatusSeeOther)
}
