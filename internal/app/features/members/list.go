// internal/app/features/members/list.go
package members

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
)

type memberItem struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type listData struct {
	viewdata.BaseVM
	Members []memberItem `json:"members"`
}

// ServeList handles GET /members.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromRequest(r)
	if !ok || !tc.HasOrganization() {
		uierrors.RenderForbidden(w, r, "Choose an organization first.", "/")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list members")
	defer cancel()

	ms, err := h.Memberships.ListActiveForOrg(ctx, tc.OrganizationID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "members: list failed", err, "", "/")
		return
	}
	data := listData{BaseVM: viewdata.NewBaseVM(r, "Members", "/")}
	for _, m := range ms {
		data.Members = append(data.Members, memberItem{UserID: m.UserID, Role: string(m.Role), JoinedAt: m.CreatedAt})
	}
	viewdata.Render(w, http.StatusOK, data)
}
