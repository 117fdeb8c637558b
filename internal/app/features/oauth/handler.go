// internal/app/features/oauth/handler.go
package oauth

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/cookies"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// FlowCookie carries the PKCE verifier between start and callback.
	FlowCookie = "oauth_flow"
	flowTTL    = 10 * time.Minute

	CallbackPath = "/auth/callback"
)

type Handler struct {
	Log         *zap.Logger
	SessionMgr  *auth.SessionManager
	ErrLog      *uierrors.ErrorLogger
	AuditLog    *auditlog.Logger
	Memberships tenant.MembershipSource
	Targets     *router.Targets

	// Providers are the external providers a visitor may start a flow with.
	Providers []string

	codec  *securecookie.SecureCookie
	secure bool
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	memberships tenant.MembershipSource,
	targets *router.Targets,
	providers []string,
	hashKey []byte,
	secure bool,
	logger *zap.Logger,
) *Handler {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(flowTTL.Seconds()))
	return &Handler{
		Log:         logger,
		SessionMgr:  sessionMgr,
		ErrLog:      errLog,
		AuditLog:    audit,
		Memberships: memberships,
		Targets:     targets,
		Providers:   providers,
		codec:       codec,
		secure:      secure,
	}
}

// flow is what the start step remembers for the callback.
type flow struct {
	Verifier string
	Return   string
}

func (h *Handler) flowCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     FlowCookie,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	dest := h.Targets.URL(router.Destination{Surface: subdomain.WWW, Path: router.PathLogin})
	http.Redirect(w, r, dest+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/oauth/{provider}                                                   |
| Starts a PKCE flow and redirects to the identity provider.                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeStart(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !slices.Contains(h.Providers, provider) {
		uierrors.RenderStatus(w, r, http.StatusNotFound, "Unknown sign-in provider.", "/login")
		return
	}

	verifier := oauth2.GenerateVerifier()
	value, err := h.codec.Encode(FlowCookie, flow{Verifier: verifier, Return: query.Get(r, "return")})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "oauth: encode flow cookie failed", err, "", "/login")
		return
	}
	if err := cookies.Set(r, h.flowCookie(value, int(flowTTL.Seconds()))); err != nil {
		h.ErrLog.LogServerError(w, r, "oauth: queue flow cookie failed", err, "", "/login")
		return
	}

	callback := h.Targets.URL(router.Destination{Surface: subdomain.WWW, Path: CallbackPath})
	dest := h.SessionMgr.Provider().AuthorizeURL(provider, callback, oauth2.S256ChallengeFromVerifier(verifier))

	h.Log.Debug("initiating OAuth flow", zap.String("provider", provider))
	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/callback                                                           |
| Exchanges the code with the stored verifier and starts the session.         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.redirectToLogin(w, r, "oauth_denied")
		return
	}

	var f flow
	c, err := r.Cookie(FlowCookie)
	if err == nil {
		err = h.codec.Decode(FlowCookie, c.Value, &f)
	}
	if err != nil || f.Verifier == "" {
		h.Log.Warn("missing or invalid OAuth flow cookie", zap.Error(err))
		h.redirectToLogin(w, r, "oauth_expired")
		return
	}
	if err := cookies.Delete(r, h.flowCookie("", -1)); err != nil {
		h.Log.Debug("flow cookie delete dropped", zap.Error(err))
	}

	code := query.Get(r, "code")
	if code == "" {
		h.redirectToLogin(w, r, "invalid_code")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "oauth exchange")
	defer cancel()

	result, err := h.SessionMgr.Provider().ExchangeCode(ctx, code, f.Verifier)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidGrant) {
			h.redirectToLogin(w, r, "oauth_expired")
			return
		}
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectToLogin(w, r, "oauth_failed")
		return
	}
	if result.Session == nil {
		h.redirectToLogin(w, r, "oauth_failed")
		return
	}

	h.SessionMgr.StartSession(r, *result.Session)
	h.AuditLog.LoginSuccess(r.Context(), r, result.User.ID, "oauth")

	dest, err := h.Targets.LandingURL(r.Context(), h.Memberships, result.User, f.Return, h.Log)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "oauth: landing lookup failed", err, "", "/")
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
