package oauth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/app/system/limits"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"go.uber.org/zap"
)

type sessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleSetSession handles POST /auth/session: a browser that finished a
// client-side flow hands its token pair to the server, which verifies it and
// stores it in the shared cookie. The answer names the landing URL.
func (h *Handler) HandleSetSession(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)).Decode(&body); err != nil || body.AccessToken == "" {
		viewdata.Render(w, http.StatusBadRequest, sessionResponse{Error: "access_token is required"})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "adopt session")
	defer cancel()

	user, err := h.SessionMgr.SetSession(ctx, r, body.AccessToken, body.RefreshToken)
	switch {
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidGrant):
		viewdata.Render(w, http.StatusUnauthorized, sessionResponse{Error: "session is not valid"})
		return
	case err != nil:
		h.Log.Error("adopt session failed", zap.Error(err))
		viewdata.Render(w, http.StatusBadGateway, sessionResponse{Error: "Something went wrong. Please try again."})
		return
	}

	h.AuditLog.LoginSuccess(r.Context(), r, user.ID, "token")
	dest, err := h.Targets.LandingURL(r.Context(), h.Memberships, user, "", h.Log)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "adopt session: landing lookup failed", err, "", "/")
		return
	}
	viewdata.Render(w, http.StatusOK, sessionResponse{Redirect: dest})
}
