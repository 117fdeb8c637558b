// internal/app/features/invitations/create.go
package invitations

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	invitationstore "github.com/dalemusser/tenanthub/internal/app/store/invitations"
	"github.com/dalemusser/tenanthub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/mailer"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/validate"
	"go.uber.org/zap"
)

type pendingItem struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type listData struct {
	viewdata.BaseVM
	Pending []pendingItem `json:"pending"`
}

type createdData struct {
	viewdata.BaseVM
	Email      string `json:"email"`
	Role       string `json:"role"`
	AcceptLink string `json:"accept_link"`
	Emailed    bool   `json:"emailed"`
}

// acceptLink is the app URL an invitee opens.
func (h *Handler) acceptLink(token string) string {
	return h.Targets.URL(router.Destination{Surface: subdomain.App, Path: "/invitations/" + token})
}

// ServeList handles GET /invitations on the admin surface.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromRequest(r)
	if !ok || !tc.HasOrganization() {
		uierrors.RenderForbidden(w, r, "Choose an organization first.", "/")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list invitations")
	defer cancel()

	invs, err := h.Invitations.ListPending(ctx, tc.OrganizationID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invitations: list failed", err, "", "/")
		return
	}
	data := listData{BaseVM: viewdata.NewBaseVM(r, "Invitations", "/")}
	for _, inv := range invs {
		data.Pending = append(data.Pending, pendingItem{
			ID:        inv.ID.Hex(),
			Email:     inv.Email,
			Role:      string(inv.Role),
			ExpiresAt: inv.ExpiresAt,
		})
	}
	viewdata.Render(w, http.StatusOK, data)
}

// HandleCreate handles POST /invitations on the admin surface. The surface
// guard has already checked that the caller administers the active
// organization. Invitations are rate limited per organization.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "")
		return
	}
	tc, ok := tenant.FromRequest(r)
	if !ok || !tc.HasOrganization() {
		uierrors.RenderForbidden(w, r, "Choose an organization first.", "/")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invitations: parse form failed", err, "Invalid form data.", "/invitations")
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	if !validate.SimpleEmailValid(email) {
		uierrors.RenderStatus(w, r, http.StatusBadRequest, "Enter a valid email address.", "/invitations")
		return
	}
	role := models.Role(strings.TrimSpace(r.PostFormValue("role")))
	if role == "" {
		role = models.RoleMember
	}
	switch err := memberpolicy.CanInvite(tc.Role, role); {
	case errors.Is(err, memberpolicy.ErrInviteRole):
		uierrors.RenderStatus(w, r, http.StatusBadRequest, `Role must be "admin" or "member".`, "/invitations")
		return
	case err != nil:
		uierrors.RenderForbidden(w, r, "Only owners and admins can invite people.", "/")
		return
	}

	orgKey := tc.OrganizationID.Hex()
	if res := h.Limiter.Check(r.Context(), orgKey, ratelimit.Invitation); !res.Success {
		h.AuditLog.RateLimited(r.Context(), r, ratelimit.Invitation.Prefix, orgKey, res)
		uierrors.RenderTooManyRequests(w, r, res)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create invitation")
	defer cancel()

	inv, err := h.Invitations.Create(ctx, tc.OrganizationID, email, role, u.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invitations: create failed", err, "", "/invitations")
		return
	}
	h.AuditLog.InvitationCreated(r.Context(), r, u.ID, tc.OrganizationID, email, string(role))

	orgName := ""
	if m, ok := tc.Active(); ok {
		orgName = m.OrganizationName
	}
	link := h.acceptLink(inv.Token)
	msg := mailer.BuildInvitationEmail(email, mailer.InvitationEmailData{
		SiteName:         viewdata.SiteName,
		OrganizationName: orgName,
		Role:             string(role),
		AcceptLink:       link,
		ExpiresIn:        fmt.Sprintf("%d days", int(invitationstore.DefaultTTL.Hours()/24)),
	})
	emailed := true
	if err := h.Mailer.Send(ctx, msg); err != nil {
		// The link is returned below so the admin can share it by hand.
		emailed = false
		h.Log.Warn("invitation email failed",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.Error(err))
	}

	viewdata.Render(w, http.StatusCreated, createdData{
		BaseVM:     viewdata.NewBaseVM(r, "Invitation sent", "/invitations"),
		Email:      email,
		Role:       string(role),
		AcceptLink: link,
		Emailed:    emailed && h.Mailer.Enabled(),
	})
}
