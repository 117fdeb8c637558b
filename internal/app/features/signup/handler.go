// internal/app/features/signup/handler.go
package signup

import (
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/validate"
	"go.uber.org/zap"
)

// MinPasswordLength matches the identity provider's default policy.
const MinPasswordLength = 8

const maxNameLength = 100

type Handler struct {
	Log         *zap.Logger
	SessionMgr  *auth.SessionManager
	ErrLog      *uierrors.ErrorLogger
	AuditLog    *auditlog.Logger
	Memberships tenant.MembershipSource
	Targets     *router.Targets
}

func NewHandler(sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, memberships tenant.MembershipSource, targets *router.Targets, logger *zap.Logger) *Handler {
	return &Handler{
		Log:         logger,
		SessionMgr:  sessionMgr,
		ErrLog:      errLog,
		AuditLog:    audit,
		Memberships: memberships,
		Targets:     targets,
	}
}

type signupFormData struct {
	viewdata.BaseVM
	Error       string `json:"error,omitempty"`
	Notice      string `json:"notice,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data signupFormData) {
	data.BaseVM = viewdata.NewBaseVM(r, "Create your account", "/")
	viewdata.Render(w, status, data)
}

// ServeSignup handles GET /signup.
func (h *Handler) ServeSignup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, signupFormData{})
}

// HandleSignup handles POST /signup. When the provider returns a session the
// user is signed in and sent to their landing page (onboarding, since a new
// account has no organization). Otherwise they are told to confirm their email.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "signup: parse form failed", err, "Invalid form data.", "/signup")
		return
	}
	data := signupFormData{
		Email:       strings.TrimSpace(r.PostFormValue("email")),
		DisplayName: htmlsanitize.PlainText(r.PostFormValue("display_name"), maxNameLength),
		CompanyName: htmlsanitize.PlainText(r.PostFormValue("company_name"), maxNameLength),
	}
	password := r.PostFormValue("password")

	if !validate.SimpleEmailValid(data.Email) {
		data.Error = "Please enter a valid email address."
		h.render(w, r, http.StatusBadRequest, data)
		return
	}
	if len(password) < MinPasswordLength {
		data.Error = "Password must be at least 8 characters."
		h.render(w, r, http.StatusBadRequest, data)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "sign up")
	defer cancel()

	meta := models.UserMetadata{DisplayName: data.DisplayName, CompanyName: data.CompanyName}
	result, err := h.SessionMgr.Provider().SignUp(ctx, data.Email, password, meta)
	switch {
	case errors.Is(err, identity.ErrUserExists):
		data.Error = "An account with this email already exists."
		h.render(w, r, http.StatusConflict, data)
		return
	case err != nil:
		h.ErrLog.LogUpstreamError(w, r, "signup: identity provider sign-up failed", err, "/signup")
		return
	}

	if result.Session == nil {
		h.AuditLog.SignUp(r.Context(), r, result.User.ID, false)
		data.Notice = "Check your email to confirm your account."
		h.render(w, r, http.StatusOK, data)
		return
	}

	h.SessionMgr.StartSession(r, *result.Session)
	h.AuditLog.SignUp(r.Context(), r, result.User.ID, true)

	dest, err := h.Targets.LandingURL(r.Context(), h.Memberships, result.User, "", h.Log)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "signup: landing lookup failed", err, "", "/")
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
