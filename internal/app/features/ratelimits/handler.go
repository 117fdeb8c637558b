// internal/app/features/ratelimits/handler.go
package ratelimits

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// policies are the counters ops may clear, by key prefix.
var policies = map[string]ratelimit.Options{
	ratelimit.Login.Prefix:         ratelimit.Login,
	ratelimit.LoginIP.Prefix:       ratelimit.LoginIP,
	ratelimit.PasswordReset.Prefix: ratelimit.PasswordReset,
	ratelimit.Invitation.Prefix:    ratelimit.Invitation,
}

// emailKeyed lists the prefixes whose identifier is a normalized email.
var emailKeyed = map[string]bool{
	ratelimit.Login.Prefix:         true,
	ratelimit.PasswordReset.Prefix: true,
}

type Handler struct {
	Limiter  *ratelimit.Limiter
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(limiter *ratelimit.Limiter, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Limiter: limiter, AuditLog: audit, ErrLog: errLog, Log: logger}
}

type resetData struct {
	viewdata.BaseVM
	Key string `json:"key"`
}

// HandleReset handles POST /ratelimit/reset on the ops surface.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "")
		return
	}
	prefix := strings.TrimSpace(r.FormValue("prefix"))
	if _, known := policies[prefix]; !known {
		uierrors.RenderStatus(w, r, http.StatusBadRequest, "Unknown rate limit.", "/")
		return
	}
	identifier := strings.TrimSpace(r.FormValue("identifier"))
	if emailKeyed[prefix] {
		identifier = ratelimit.NormalizeEmail(identifier)
	}
	if identifier == "" {
		uierrors.RenderStatus(w, r, http.StatusBadRequest, "Identifier is required.", "/")
		return
	}

	if err := h.Limiter.Reset(r.Context(), identifier, prefix); err != nil {
		h.ErrLog.LogServerError(w, r, "ratelimit: reset failed", err, "", "/")
		return
	}
	h.AuditLog.RateLimitReset(r.Context(), r, u.ID, prefix, identifier)
	h.Log.Info("rate limit reset",
		zap.String("key", ratelimit.Key(prefix, identifier)),
		zap.String("actor_id", u.ID))

	viewdata.Render(w, http.StatusOK, resetData{
		BaseVM: viewdata.NewBaseVM(r, "Rate limit reset", "/"),
		Key:    ratelimit.Key(prefix, identifier),
	})
}

// Routes is mounted at /ratelimit on the ops surface.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/reset", h.HandleReset)
	return r
}
