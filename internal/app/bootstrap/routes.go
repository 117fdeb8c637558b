// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"

	auditlogfeature "github.com/dalemusser/tenanthub/internal/app/features/auditlog"
	dashboardfeature "github.com/dalemusser/tenanthub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/tenanthub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/tenanthub/internal/app/features/health"
	homefeature "github.com/dalemusser/tenanthub/internal/app/features/home"
	invitationsfeature "github.com/dalemusser/tenanthub/internal/app/features/invitations"
	loginfeature "github.com/dalemusser/tenanthub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/tenanthub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/tenanthub/internal/app/features/members"
	oauthfeature "github.com/dalemusser/tenanthub/internal/app/features/oauth"
	onboardingfeature "github.com/dalemusser/tenanthub/internal/app/features/onboarding"
	organizationsfeature "github.com/dalemusser/tenanthub/internal/app/features/organizations"
	passwordresetfeature "github.com/dalemusser/tenanthub/internal/app/features/passwordreset"
	ratelimitsfeature "github.com/dalemusser/tenanthub/internal/app/features/ratelimits"
	signupfeature "github.com/dalemusser/tenanthub/internal/app/features/signup"
	userinfofeature "github.com/dalemusser/tenanthub/internal/app/features/userinfo"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/cookies"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/app/system/limits"
	"github.com/dalemusser/tenanthub/internal/app/system/mailer"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// Every request passes the same chain before reaching a surface router:
// subdomain resolution, the cookie commit layer, the session bridge and the
// tenant resolver. Each surface then applies router.Guard to everything
// except its always-open endpoints.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	provider, err := newProvider(appCfg, logger)
	if err != nil {
		logger.Error("identity provider init failed", zap.Error(err))
		return nil, err
	}
	return buildRouter(coreCfg.Env == "prod", appCfg, deps, provider, logger)
}

func newProvider(appCfg AppConfig, logger *zap.Logger) (identity.Provider, error) {
	if appCfg.IdentityMode == IdentityGoTrue {
		hc := &http.Client{Timeout: appCfg.IdentityTimeout}
		return identity.NewClient(appCfg.IdentityURL, appCfg.IdentityAnonKey, hc, logger), nil
	}

	m := identity.NewMemory()
	if appCfg.DevOpsEmail != "" {
		if _, err := m.AddUser(appCfg.DevOpsEmail, appCfg.DevOpsPassword, true, models.UserMetadata{DisplayName: "Operations"}); err != nil {
			return nil, fmt.Errorf("seed ops account: %w", err)
		}
		logger.Info("seeded in-memory ops account", zap.String("email", appCfg.DevOpsEmail))
	}
	logger.Warn("using in-memory identity provider; accounts are lost on restart")
	return m, nil
}

// server bundles the shared collaborators handed to feature handlers.
type server struct {
	log      *zap.Logger
	targets  *router.Targets
	errLog   *errorsfeature.ErrorLogger
	notFound http.HandlerFunc
	userInfo *userinfofeature.Handler
	health   *healthfeature.Handler
	logout   *logoutfeature.Handler
}

func buildRouter(prod bool, appCfg AppConfig, deps DBDeps, provider identity.Provider, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase
	domain := auth.CookieDomain(prod, appCfg.CookieDomain)

	targets, err := router.NewTargets(appCfg.bases())
	if err != nil {
		return nil, err
	}
	hosts, err := subdomain.NewResolver(appCfg.bases())
	if err != nil {
		return nil, err
	}

	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, domain, appCfg.SessionMaxAge, prod, provider, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetLoginURL(func(r *http.Request) string {
		s, _ := subdomain.FromRequest(r)
		return targets.Login(s)
	})
	tenants := tenant.NewResolver([]byte(appCfg.OrgCookieKey), domain, prod, logger)
	memberships := membershipstore.New(db)

	var counter ratelimit.Counter
	if deps.Redis != nil {
		counter = ratelimit.NewRedisCounter(deps.Redis)
	}
	limiter := ratelimit.New(counter, logger)

	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:     appCfg.AuditAuth,
		Tenant:   appCfg.AuditTenant,
		Security: appCfg.AuditSecurity,
	})
	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
		UseSSL:   appCfg.MailSMTPSSL,
		Timeout:  appCfg.TimeoutMedium,
	}, logger)

	checks := []healthfeature.Check{healthfeature.MongoCheck(deps.MongoClient)}
	if deps.Redis != nil {
		checks = append(checks, healthfeature.RedisCheck(deps.Redis))
	}

	s := &server{
		log:      logger,
		targets:  targets,
		errLog:   errorsfeature.NewErrorLogger(logger),
		notFound: errorsfeature.NewHandler().NotFound,
		userInfo: userinfofeature.NewHandler(),
		health:   healthfeature.NewHandler(logger, checks...),
		logout:   logoutfeature.NewHandler(sessionMgr, tenants, auditLog, targets, logger),
	}

	login := loginfeature.NewHandler(sessionMgr, s.errLog, auditLog, limiter, memberships, targets, appCfg.OAuthProviders, logger)
	dashboard := dashboardfeature.NewHandler(db, s.errLog, logger)
	invitations := invitationsfeature.NewHandler(db, tenants, limiter, mail, targets, auditLog, s.errLog, logger)
	organizations := organizationsfeature.NewHandler(tenants, targets, auditLog, logger)

	surfaces := map[subdomain.Surface]http.Handler{
		subdomain.WWW: s.surface(nil, func(r chi.Router) {
			r.Get("/", homefeature.NewHandler(memberships, targets, logger).ServeRoot)
			r.Mount("/login", loginfeature.Routes(login))
			r.Mount("/signup", signupfeature.Routes(
				signupfeature.NewHandler(sessionMgr, s.errLog, auditLog, memberships, targets, logger)))
			r.Mount("/password", passwordresetfeature.Routes(
				passwordresetfeature.NewHandler(provider, limiter, s.errLog, auditLog, targets, logger)))
			r.Mount("/auth", oauthfeature.Routes(
				oauthfeature.NewHandler(sessionMgr, s.errLog, auditLog, memberships, targets,
					appCfg.OAuthProviders, []byte(appCfg.OAuthFlowKey), prod, logger)))
		}),

		subdomain.App: s.surface(nil, func(r chi.Router) {
			r.Mount("/", dashboardfeature.AppRoutes(dashboard))
			r.Mount("/onboarding", onboardingfeature.Routes(
				onboardingfeature.NewHandler(db, tenants, targets, auditLog, s.errLog, logger)))
			r.Mount("/organizations", organizationsfeature.Routes(organizations))
			r.Mount("/invitations", invitationsfeature.AppRoutes(invitations))
		}),

		subdomain.Admin: s.surface(nil, func(r chi.Router) {
			r.Mount("/", dashboardfeature.AdminRoutes(dashboard))
			r.Mount("/invitations", invitationsfeature.AdminRoutes(invitations))
			r.Mount("/members", membersfeature.Routes(
				membersfeature.NewHandler(db, s.errLog, auditLog, logger)))
			r.Mount("/organizations", organizationsfeature.Routes(organizations))
		}),

		subdomain.Ops: s.surface(func(r chi.Router) {
			r.Mount("/login", loginfeature.Routes(login))
		}, func(r chi.Router) {
			r.Mount("/", dashboardfeature.OpsRoutes(dashboard))
			r.Mount("/audit", auditlogfeature.Routes(
				auditlogfeature.NewHandler(db, s.errLog, logger)))
			r.Mount("/ratelimit", ratelimitsfeature.Routes(
				ratelimitsfeature.NewHandler(limiter, auditLog, s.errLog, logger)))
		}),
	}

	chain := chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		subdomain.Middleware(hosts, logger),
		cookies.Middleware(logger),
		limits.Body(limits.MaxFormSize),
		sessionMgr.LoadSessionUser,
		tenants.Middleware(memberships),
	)
	return chain.Handler(dispatch(surfaces, s.notFound)), nil
}

// surface builds one subdomain's router. open routes skip the guard; health,
// logout and /api/user are open on every surface.
func (s *server) surface(open, guarded func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.NotFound(s.notFound)

	r.Mount("/health", healthfeature.Routes(s.health))
	r.Mount("/logout", logoutfeature.Routes(s.logout))
	userinfofeature.MountRoutes(r, s.userInfo)
	if open != nil {
		open(r)
	}

	r.Group(func(g chi.Router) {
		g.Use(router.Guard(s.targets, s.log))
		guarded(g)
	})
	return r
}

// dispatch hands the request to the router of the surface resolved by the
// subdomain middleware.
func dispatch(surfaces map[subdomain.Surface]http.Handler, notFound http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := subdomain.FromRequest(r)
		h, ok := surfaces[s]
		if !ok {
			notFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
