package home

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the marketing home page.
type Handler struct {
	Memberships tenant.MembershipSource
	Targets     *router.Targets
	Log         *zap.Logger
}

func NewHandler(memberships tenant.MembershipSource, targets *router.Targets, logger *zap.Logger) *Handler {
	return &Handler{
		Memberships: memberships,
		Targets:     targets,
		Log:         logger,
	}
}

type homeData struct {
	viewdata.BaseVM
	LoginURL    string `json:"login_url"`
	SignupURL   string `json:"signup_url"`
	ContinueURL string `json:"continue_url,omitempty"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	data := homeData{
		BaseVM:    viewdata.NewBaseVM(r, "Welcome", "/"),
		LoginURL:  h.Targets.Login(subdomain.WWW),
		SignupURL: h.Targets.URL(router.Destination{Surface: subdomain.WWW, Path: "/signup"}),
	}

	// Signed-in visitors get a link to wherever the router would land them.
	// A lookup failure only hides the link.
	if u, ok := auth.CurrentUser(r); ok {
		dest, err := h.Targets.LandingURL(r.Context(), h.Memberships, *u, "", h.Log)
		if err != nil {
			h.Log.Warn("home: landing lookup failed", zap.Error(err), zap.String("user_id", u.ID))
		} else {
			data.ContinueURL = dest
		}
	}

	viewdata.Render(w, http.StatusOK, data)
}
