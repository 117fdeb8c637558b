// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/waffle/pantry/httpnav"
)

// SiteName is shown on every page.
const SiteName = "TenantHub"

// OrgVM is one entry in the organization switcher.
type OrgVM struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/default-back"),
//	}
type BaseVM struct {
	SiteName string `json:"site_name"`
	Surface  string `json:"surface,omitempty"`

	// User context (from the session bridge)
	IsLoggedIn  bool   `json:"is_logged_in"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	IsOps       bool   `json:"is_ops,omitempty"`

	// Tenant context
	ActiveOrganization string  `json:"active_organization,omitempty"`
	Role               string  `json:"role,omitempty"`
	Organizations      []OrgVM `json:"organizations,omitempty"`

	// Page context
	Title       string `json:"title"`
	BackURL     string `json:"back_url,omitempty"`
	CurrentPath string `json:"current_path"`
}

// NewBaseVM creates a BaseVM from the request's user, tenant and surface.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := BaseVM{
		SiteName:    SiteName,
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
	}
	if s, ok := subdomain.FromRequest(r); ok {
		vm.Surface = string(s)
	}
	if u, ok := auth.CurrentUser(r); ok {
		vm.IsLoggedIn = true
		vm.Email = u.Email
		vm.DisplayName = u.Metadata.DisplayName
		vm.IsOps = u.IsOps
	}
	if tc, ok := tenant.FromRequest(r); ok {
		if tc.HasOrganization() {
			vm.ActiveOrganization = tc.OrganizationID.Hex()
			vm.Role = string(tc.Role)
		}
		for _, m := range tc.Memberships {
			vm.Organizations = append(vm.Organizations, OrgVM{
				ID:     m.OrganizationID.Hex(),
				Name:   m.OrganizationName,
				Slug:   m.OrganizationSlug,
				Role:   string(m.Role),
				Active: m.OrganizationID == tc.OrganizationID,
			})
		}
	}
	return vm
}

// Render writes v as the JSON body of the response.
func Render(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
