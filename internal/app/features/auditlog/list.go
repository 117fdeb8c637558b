// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"slices"
	"strings"
	"time"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/app/system/paging"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var categories = []string{audit.CategoryAuth, audit.CategoryTenant, audit.CategorySecurity}

// listItem represents a single audit event row for display.
type listItem struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Category       string            `json:"category"`
	EventType      string            `json:"event_type"`
	UserID         string            `json:"user_id,omitempty"`
	ActorID        string            `json:"actor_id,omitempty"`
	OrganizationID string            `json:"organization_id,omitempty"`
	IP             string            `json:"ip"`
	Success        bool              `json:"success"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

// listData is the view model for the audit log list page.
type listData struct {
	viewdata.BaseVM
	Items []listItem `json:"items"`

	// Filters
	Category     string `json:"category,omitempty"`
	EventType    string `json:"event_type,omitempty"`
	Organization string `json:"organization,omitempty"`

	Categories []string `json:"categories"`
	paging.Page
}

// ServeList handles GET /audit on the ops surface.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(query.Get(r, "category"))
	if category != "" && !slices.Contains(categories, category) {
		uierrors.RenderStatus(w, r, http.StatusBadRequest, "Unknown category.", "/audit")
		return
	}
	page := paging.ParsePage(r)
	filter := audit.QueryFilter{
		Category:  category,
		EventType: strings.TrimSpace(query.Get(r, "event_type")),
		Limit:     paging.PageSize,
		Offset:    paging.Offset(page),
	}
	org := strings.TrimSpace(query.Get(r, "org"))
	if org != "" {
		id, err := primitive.ObjectIDFromHex(org)
		if err != nil {
			uierrors.RenderStatus(w, r, http.StatusBadRequest, "Invalid organization id.", "/audit")
			return
		}
		filter.OrganizationID = &id
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "audit: query failed", err, "", "/")
		return
	}
	total, err := h.Events.Count(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "audit: count failed", err, "", "/")
		return
	}

	data := listData{
		BaseVM:       viewdata.NewBaseVM(r, "Audit log", "/"),
		Items:        make([]listItem, 0, len(events)),
		Category:     filter.Category,
		EventType:    filter.EventType,
		Organization: org,
		Categories:   categories,
		Page:         paging.Compute(page, len(events), total),
	}
	for _, e := range events {
		item := listItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			UserID:        e.UserID,
			ActorID:       e.ActorID,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.OrganizationID != nil {
			item.OrganizationID = e.OrganizationID.Hex()
		}
		data.Items = append(data.Items, item)
	}
	viewdata.Render(w, http.StatusOK, data)
}
