// internal/app/features/dashboard/app.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
)

type appDashboardData struct {
	viewdata.BaseVM
	Organization  orgSummary `json:"organization"`
	CanAdminister bool       `json:"can_administer"`
}

// ServeApp handles GET / on the app surface: a summary of the active
// organization.
func (h *Handler) ServeApp(w http.ResponseWriter, r *http.Request) {
	tc, org, ok := h.activeOrg(w, r)
	if !ok {
		return
	}
	viewdata.Render(w, http.StatusOK, appDashboardData{
		BaseVM:        viewdata.NewBaseVM(r, org.Name, "/"),
		Organization:  summarize(org),
		CanAdminister: tc.Role.CanAdminister(),
	})
}
