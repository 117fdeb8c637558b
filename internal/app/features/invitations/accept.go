// internal/app/features/invitations/accept.go
package invitations

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	invitationstore "github.com/dalemusser/tenanthub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/txn"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type invitationData struct {
	viewdata.BaseVM
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	AcceptURL        string `json:"accept_url"`
}

// lookup loads the pending invitation for the {token} parameter and writes
// the error page when there is none. The signed-in email must match the
// invited one.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, u *models.User) (models.Invitation, bool) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load invitation")
	defer cancel()

	inv, err := h.Invitations.GetPending(ctx, chi.URLParam(r, "token"))
	switch {
	case errors.Is(err, invitationstore.ErrNotFound):
		uierrors.RenderStatus(w, r, http.StatusNotFound, "This invitation does not exist.", "/")
		return inv, false
	case errors.Is(err, invitationstore.ErrExpired):
		uierrors.RenderStatus(w, r, http.StatusGone, "This invitation has expired or was already used.", "/")
		return inv, false
	case err != nil:
		h.ErrLog.LogServerError(w, r, "invitations: load failed", err, "", "/")
		return inv, false
	}
	if text.Fold(u.Email) != inv.EmailCI {
		uierrors.RenderForbidden(w, r, "This invitation was sent to a different email address.", "/")
		return inv, false
	}
	return inv, true
}

// ServeView handles GET /invitations/{token} on the app surface.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, h.Targets.Login(subdomain.App))
		return
	}
	inv, ok := h.lookup(w, r, u)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load organization")
	defer cancel()
	org, err := h.Orgs.GetByID(ctx, inv.OrganizationID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invitations: organization lookup failed", err, "", "/")
		return
	}

	viewdata.Render(w, http.StatusOK, invitationData{
		BaseVM:           viewdata.NewBaseVM(r, "Join "+org.Name, "/"),
		OrganizationName: org.Name,
		Email:            inv.Email,
		Role:             string(inv.Role),
		AcceptURL:        h.acceptLink(inv.Token) + "/accept",
	})
}

// HandleAccept handles POST /invitations/{token}/accept. The invitation is
// consumed first so that two concurrent accepts cannot both succeed; an
// existing membership in the organization is kept as it is.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, h.Targets.Login(subdomain.App))
		return
	}
	inv, ok := h.lookup(w, r, u)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "accept invitation")
	defer cancel()

	// Consuming the invitation and writing the membership happen together.
	// Without transaction support a failed membership write reopens the
	// invitation.
	joined := false
	err := txn.Run(ctx, h.Client, h.Log, func(ctx context.Context) error {
		joined = false
		if err := h.Invitations.MarkAccepted(ctx, inv.ID, u.ID); err != nil {
			return err
		}
		_, err := h.Memberships.Add(ctx, inv.OrganizationID, u.ID, inv.Role)
		switch {
		case errors.Is(err, membershipstore.ErrDuplicateMembership):
			return nil
		case err != nil:
			if reErr := h.Invitations.Reopen(ctx, inv.ID); reErr != nil {
				h.Log.Warn("invitations: reopen failed",
					zap.String("invitation_id", inv.ID.Hex()),
					zap.Error(reErr))
			}
			return fmt.Errorf("add membership: %w", err)
		}
		joined = true
		return nil
	})
	switch {
	case errors.Is(err, invitationstore.ErrExpired):
		uierrors.RenderStatus(w, r, http.StatusGone, "This invitation has expired or was already used.", "/")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "invitations: accept failed", err, "", "/")
		return
	}

	if joined {
		h.AuditLog.InvitationAccepted(r.Context(), r, u.ID, inv.OrganizationID, string(inv.Role))
	} else {
		h.Log.Info("invitation accepted by existing member",
			zap.String("user_id", u.ID),
			zap.String("org_id", inv.OrganizationID.Hex()))
	}

	if err := h.Tenants.SetActive(r, inv.OrganizationID); err != nil {
		h.Log.Warn("invitations: organization cookie dropped", zap.Error(err))
	}
	http.Redirect(w, r, h.Targets.URL(router.Destination{Surface: subdomain.App, Path: router.PathRoot}), http.StatusSeeOther)
}
