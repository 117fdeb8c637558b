// internal/app/features/login/handler.go
package login

import (
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

type Handler struct {
	Log         *zap.Logger
	SessionMgr  *auth.SessionManager
	ErrLog      *uierrors.ErrorLogger
	AuditLog    *auditlog.Logger
	Limiter     ratelimit.LoginLimiter
	Memberships tenant.MembershipSource
	Targets     *router.Targets

	// OAuthProviders lists the external providers offered on the form.
	OAuthProviders []string
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	limiter *ratelimit.Limiter,
	memberships tenant.MembershipSource,
	targets *router.Targets,
	oauthProviders []string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:            logger,
		SessionMgr:     sessionMgr,
		ErrLog:         errLog,
		AuditLog:       audit,
		Limiter:        ratelimit.LoginLimiter{Limiter: limiter},
		Memberships:    memberships,
		Targets:        targets,
		OAuthProviders: oauthProviders,
	}
}

type loginFormData struct {
	viewdata.BaseVM
	Error          string   `json:"error,omitempty"`
	Email          string   `json:"email,omitempty"`
	ReturnURL      string   `json:"return_url,omitempty"`
	OAuthProviders []string `json:"oauth_providers,omitempty"`
}

// ServeLogin handles GET /login. A visitor who is already signed in is sent
// straight to their landing page.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ret := query.Get(r, "return")
	if u, ok := auth.CurrentUser(r); ok {
		dest, err := h.Targets.LandingURL(r.Context(), h.Memberships, *u, ret, h.Log)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "login: landing lookup failed", err, "", "/")
			return
		}
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}
	h.renderForm(w, r, http.StatusOK, "", "", ret)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, msg, email, ret string) {
	viewdata.Render(w, status, loginFormData{
		BaseVM:         viewdata.NewBaseVM(r, "Sign in", "/"),
		Error:          msg,
		Email:          email,
		ReturnURL:      ret,
		OAuthProviders: h.OAuthProviders,
	})
}

// HandleLoginPost handles POST /login.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "login: parse form failed", err, "Invalid form data.", "/login")
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	ret := r.PostFormValue("return")

	if email == "" || password == "" {
		h.renderForm(w, r, http.StatusBadRequest, "Email and password are required.", email, ret)
		return
	}

	if res := h.Limiter.CheckLogin(r, email); !res.Success {
		h.AuditLog.RateLimited(r.Context(), r, ratelimit.Login.Prefix, ratelimit.NormalizeEmail(email), res)
		uierrors.RenderTooManyRequests(w, r, res)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "sign in")
	defer cancel()

	result, err := h.SessionMgr.Provider().SignInWithPassword(ctx, email, password)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		h.AuditLog.LoginFailed(r.Context(), r, ratelimit.NormalizeEmail(email), "invalid credentials")
		h.renderForm(w, r, http.StatusUnauthorized, "Invalid email or password.", email, ret)
		return
	case err != nil:
		h.ErrLog.LogUpstreamError(w, r, "login: identity provider sign-in failed", err, "/login")
		return
	case result.Session == nil:
		h.renderForm(w, r, http.StatusUnauthorized, "Please confirm your email address before signing in.", email, ret)
		return
	}

	h.SessionMgr.StartSession(r, *result.Session)
	h.AuditLog.LoginSuccess(r.Context(), r, result.User.ID, "password")

	dest, err := h.Targets.LandingURL(r.Context(), h.Memberships, result.User, ret, h.Log)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: landing lookup failed", err, "", "/")
		return
	}
	h.Log.Info("user signed in",
		zap.String("user_id", result.User.ID),
		zap.Bool("is_ops", result.User.IsOps))
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
