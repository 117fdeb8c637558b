// internal/app/features/dashboard/admin.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/dalemusser/tenanthub/internal/domain/models"
)

type adminDashboardData struct {
	viewdata.BaseVM
	Organization       orgSummary `json:"organization"`
	MembersCount       int        `json:"members_count"`
	OwnersCount        int        `json:"owners_count"`
	PendingInvitations int        `json:"pending_invitations"`
}

// ServeAdmin handles GET / on the admin surface.
func (h *Handler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	tc, org, ok := h.activeOrg(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "admin dashboard")
	defer cancel()

	ms, err := h.Memberships.ListActiveForOrg(ctx, tc.OrganizationID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard: members lookup failed", err, "", "/")
		return
	}
	invs, err := h.Invitations.ListPending(ctx, tc.OrganizationID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard: invitations lookup failed", err, "", "/")
		return
	}

	data := adminDashboardData{
		BaseVM:             viewdata.NewBaseVM(r, "Manage "+org.Name, "/"),
		Organization:       summarize(org),
		MembersCount:       len(ms),
		PendingInvitations: len(invs),
	}
	for _, m := range ms {
		if m.Role == models.RoleOwner {
			data.OwnersCount++
		}
	}
	viewdata.Render(w, http.StatusOK, data)
}
