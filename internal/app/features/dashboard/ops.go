// internal/app/features/dashboard/ops.go
package dashboard

import (
	"net/http"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
)

const (
	recentOrgsLimit   = 10
	recentEventsLimit = 20
)

type securityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	IP        string            `json:"ip"`
	Details   map[string]string `json:"details,omitempty"`
}

type opsDashboardData struct {
	viewdata.BaseVM
	OrgsCount      int64           `json:"orgs_count"`
	RecentOrgs     []orgSummary    `json:"recent_orgs"`
	SecurityEvents []securityEvent `json:"security_events"`
}

// ServeOps handles GET / on the ops surface. Counts that fail to load are
// shown as zero rather than failing the page.
func (h *Handler) ServeOps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "ops dashboard")
	defer cancel()

	data := opsDashboardData{
		BaseVM:         viewdata.NewBaseVM(r, "Operations", "/"),
		RecentOrgs:     []orgSummary{},
		SecurityEvents: []securityEvent{},
	}

	orgCount, _ := h.Orgs.Count(ctx)
	data.OrgsCount = orgCount

	orgs, err := h.Orgs.Recent(ctx, recentOrgsLimit)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard: recent organizations failed", err, "", "/")
		return
	}
	for _, o := range orgs {
		data.RecentOrgs = append(data.RecentOrgs, summarize(o))
	}

	events, err := h.Events.Recent(ctx, audit.CategorySecurity, recentEventsLimit)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard: security events failed", err, "", "/")
		return
	}
	for _, e := range events {
		data.SecurityEvents = append(data.SecurityEvents, securityEvent{
			Timestamp: e.Timestamp,
			EventType: e.EventType,
			IP:        e.IP,
			Details:   e.Details,
		})
	}

	viewdata.Render(w, http.StatusOK, data)
}
