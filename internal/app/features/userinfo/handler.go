// internal/app/features/userinfo/handler.go
package userinfo

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
)

// Handler serves user information for the current session.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type membershipInfo struct {
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	Role             string `json:"role"`
}

type userInfo struct {
	IsAuthenticated    bool             `json:"isAuthenticated"`
	ID                 string           `json:"id,omitempty"`
	Email              string           `json:"email,omitempty"`
	DisplayName        string           `json:"display_name,omitempty"`
	IsOps              bool             `json:"is_ops,omitempty"`
	ActiveOrganization string           `json:"active_organization,omitempty"`
	Role               string           `json:"role,omitempty"`
	Memberships        []membershipInfo `json:"memberships,omitempty"`
}

// ServeUserInfo returns JSON with the session's user and resolved tenant.
//
// Response format:
//
//	{ "isAuthenticated": bool, "id": "...", "email": "...", "active_organization": "...", "role": "..." }
//
// Client-side code polls this to notice sign-out in another tab.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	var out userInfo
	if user, ok := auth.CurrentUser(r); ok {
		out.IsAuthenticated = true
		out.ID = user.ID
		out.Email = user.Email
		out.DisplayName = user.Metadata.DisplayName
		out.IsOps = user.IsOps
	}
	if tc, ok := tenant.FromRequest(r); ok && out.IsAuthenticated {
		if tc.HasOrganization() {
			out.ActiveOrganization = tc.OrganizationID.Hex()
			out.Role = string(tc.Role)
		}
		for _, m := range tc.Memberships {
			out.Memberships = append(out.Memberships, membershipInfo{
				OrganizationID:   m.OrganizationID.Hex(),
				OrganizationName: m.OrganizationName,
				Role:             string(m.Role),
			})
		}
	}

	_ = json.NewEncoder(w).Encode(out)
}
