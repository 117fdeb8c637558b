// internal/app/features/dashboard/common.go
package dashboard

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/domain/models"
)

// orgSummary is the organization card shown on app and admin dashboards.
type orgSummary struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	Plan               string     `json:"plan"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func summarize(o models.Organization) orgSummary {
	return orgSummary{
		ID:                 o.ID.Hex(),
		Name:               o.Name,
		Slug:               o.Slug,
		Plan:               o.Plan,
		SubscriptionStatus: o.SubscriptionStatus,
		TrialEndsAt:        o.TrialEndsAt,
		CreatedAt:          o.CreatedAt,
	}
}

// activeOrg loads the active organization or writes the error page.
func (h *Handler) activeOrg(w http.ResponseWriter, r *http.Request) (tenant.Context, models.Organization, bool) {
	tc, ok := tenant.FromRequest(r)
	if !ok || !tc.HasOrganization() {
		uierrors.RenderForbidden(w, r, "Choose an organization first.", "/")
		return tc, models.Organization{}, false
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load active organization")
	defer cancel()
	org, err := h.Orgs.GetByID(ctx, tc.OrganizationID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard: organization lookup failed", err, "", "/")
		return tc, org, false
	}
	return tc, org, true
}
