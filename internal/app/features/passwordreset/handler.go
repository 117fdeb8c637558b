// internal/app/features/passwordreset/handler.go
package passwordreset

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"go.uber.org/zap"
)

// UpdatePath is where the provider's reset email links back to.
const UpdatePath = "/password/update"

// Notice is the only answer to a reset request, so it cannot be used to
// discover which emails have accounts.
const Notice = "If an account exists for that email, a reset link is on its way."

type Handler struct {
	Log      *zap.Logger
	Provider identity.Provider
	Limiter  *ratelimit.Limiter
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Targets  *router.Targets
}

func NewHandler(provider identity.Provider, limiter *ratelimit.Limiter, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, targets *router.Targets, logger *zap.Logger) *Handler {
	return &Handler{
		Log:      logger,
		Provider: provider,
		Limiter:  limiter,
		ErrLog:   errLog,
		AuditLog: audit,
		Targets:  targets,
	}
}

type resetData struct {
	viewdata.BaseVM
	Error  string `json:"error,omitempty"`
	Notice string `json:"notice,omitempty"`
}

// ServeForm handles GET /password/reset.
func (h *Handler) ServeForm(w http.ResponseWriter, r *http.Request) {
	viewdata.Render(w, http.StatusOK, resetData{BaseVM: viewdata.NewBaseVM(r, "Reset password", "/login")})
}

// HandleRequest handles POST /password/reset. Requests are limited per email
// address; provider failures are logged but never change the answer.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "password reset: parse form failed", err, "Invalid form data.", "/password/reset")
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	if email == "" {
		viewdata.Render(w, http.StatusBadRequest, resetData{
			BaseVM: viewdata.NewBaseVM(r, "Reset password", "/login"),
			Error:  "Please enter your email address.",
		})
		return
	}

	id := ratelimit.NormalizeEmail(email)
	if res := h.Limiter.Check(r.Context(), id, ratelimit.PasswordReset); !res.Success {
		h.AuditLog.RateLimited(r.Context(), r, ratelimit.PasswordReset.Prefix, id, res)
		uierrors.RenderTooManyRequests(w, r, res)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "password reset")
	defer cancel()

	redirectTo := h.Targets.URL(router.Destination{Surface: subdomain.WWW, Path: UpdatePath})
	if err := h.Provider.ResetPasswordForEmail(ctx, email, redirectTo); err != nil {
		h.Log.Warn("password reset request failed", zap.Error(err))
	} else {
		h.AuditLog.PasswordResetRequested(r.Context(), r, id)
	}

	viewdata.Render(w, http.StatusOK, resetData{
		BaseVM: viewdata.NewBaseVM(r, "Reset password", "/login"),
		Notice: Notice,
	})
}
