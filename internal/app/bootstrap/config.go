// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Identity modes.
const (
	IdentityMemory = "memory"
	IdentityGoTrue = "gotrue"
)

// minKeyLen is the minimum signing key length accepted in production.
const minKeyLen = 32

// appConfigKeys defines the configuration keys for TenantHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TENANTHUB_MONGO_URI, TENANTHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tenanthub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "redis_url", Default: "redis://localhost:6379/0", Desc: "Redis URL for rate-limit counters (blank disables limiting)"},

	// Cookies
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "tenanthub-session", Desc: "Session cookie name"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},
	{Name: "cookie_domain", Default: "", Desc: "Shared cookie domain (required in production, e.g. .tenanthub.com)"},
	{Name: "org_cookie_key", Default: "dev-only-org-cookie-key-0123456789ABCDEF", Desc: "Signing key for the active organization cookie"},
	{Name: "oauth_flow_key", Default: "dev-only-oauth-flow-key-0123456789ABCDEF", Desc: "Signing key for the OAuth PKCE flow cookie"},

	// Surfaces
	{Name: "www_base_url", Default: "http://www.localhost:8080", Desc: "Absolute base URL of the marketing surface"},
	{Name: "app_base_url", Default: "http://app.localhost:8080", Desc: "Absolute base URL of the tenant app"},
	{Name: "admin_base_url", Default: "http://admin.localhost:8080", Desc: "Absolute base URL of tenant administration"},
	{Name: "ops_base_url", Default: "http://ops.localhost:8080", Desc: "Absolute base URL of the operations console"},

	// Identity provider
	{Name: "identity_mode", Default: IdentityMemory, Desc: "Identity provider: 'memory' (local development) or 'gotrue'"},
	{Name: "identity_url", Default: "", Desc: "Base URL of the GoTrue-compatible identity service"},
	{Name: "identity_anon_key", Default: "", Desc: "Project anon key sent to the identity service"},
	{Name: "identity_timeout", Default: "10s", Desc: "HTTP timeout for identity service calls"},
	{Name: "oauth_providers", Default: "google", Desc: "Comma-separated OAuth providers offered on the login page"},
	{Name: "dev_ops_email", Default: "", Desc: "Seeds an ops account when identity_mode=memory"},
	{Name: "dev_ops_password", Default: "", Desc: "Password for dev_ops_email"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_tenant", Default: "all", Desc: "Tenant event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_security", Default: "all", Desc: "Security event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs invitation emails instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@tenanthub.com", Desc: "From email address"},
	{Name: "mail_from_name", Default: "TenantHub", Desc: "From display name"},
	{Name: "mail_smtp_ssl", Default: false, Desc: "Use implicit TLS instead of STARTTLS"},

	// Timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Deadline for health pings"},
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single lookups and counter calls"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for multi-document writes"},

	// Workers
	{Name: "invitation_cleanup_interval", Default: "1h", Desc: "How often expired invitations are purged (0 disables)"},
	{Name: "invitation_retention", Default: "720h", Desc: "How long expired invitations are kept before purging"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges flags > env (TENANTHUB_*) > files
// > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TENANTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		RedisURL:         appValues.String("redis_url"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),
		CookieDomain:  appValues.String("cookie_domain"),
		OrgCookieKey:  appValues.String("org_cookie_key"),
		OAuthFlowKey:  appValues.String("oauth_flow_key"),

		WWWBaseURL:   appValues.String("www_base_url"),
		AppBaseURL:   appValues.String("app_base_url"),
		AdminBaseURL: appValues.String("admin_base_url"),
		OpsBaseURL:   appValues.String("ops_base_url"),

		IdentityMode:    strings.ToLower(strings.TrimSpace(appValues.String("identity_mode"))),
		IdentityURL:     appValues.String("identity_url"),
		IdentityAnonKey: appValues.String("identity_anon_key"),
		IdentityTimeout: appValues.Duration("identity_timeout", 10*time.Second),
		OAuthProviders:  splitList(appValues.String("oauth_providers")),
		DevOpsEmail:     appValues.String("dev_ops_email"),
		DevOpsPassword:  appValues.String("dev_ops_password"),

		AuditAuth:     appValues.String("audit_log_auth"),
		AuditTenant:   appValues.String("audit_log_tenant"),
		AuditSecurity: appValues.String("audit_log_security"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),
		MailSMTPSSL:  appValues.Bool("mail_smtp_ssl"),

		TimeoutPing:   appValues.Duration("timeout_ping", 0),
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),

		InvitationCleanupInterval: appValues.Duration("invitation_cleanup_interval", time.Hour),
		InvitationRetention:       appValues.Duration("invitation_retention", 30*24*time.Hour),
	}

	return coreCfg, appCfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bases returns the configured base URL of every surface.
func (c AppConfig) bases() map[subdomain.Surface]string {
	return map[subdomain.Surface]string{
		subdomain.WWW:   c.WWWBaseURL,
		subdomain.App:   c.AppBaseURL,
		subdomain.Admin: c.AdminBaseURL,
		subdomain.Ops:   c.OpsBaseURL,
	}
}

// ValidateConfig performs app-specific config validation.
//
// Every problem is reported at once so a misconfigured deploy fails with the
// full list.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	err := validate(coreCfg.Env == "prod", appCfg)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
	}
	return err
}

func validate(prod bool, c AppConfig) error {
	var errs []error

	if err := wafflemongo.ValidateURI(c.MongoURI); err != nil {
		errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid redis_url: %w", err))
		}
	}
	if _, err := router.NewTargets(c.bases()); err != nil {
		errs = append(errs, err)
	}
	if _, err := subdomain.NewResolver(c.bases()); err != nil {
		errs = append(errs, err)
	}

	if prod {
		if c.CookieDomain == "" {
			errs = append(errs, errors.New("cookie_domain is required in production"))
		}
		for name, key := range map[string]string{
			"session_key":    c.SessionKey,
			"org_cookie_key": c.OrgCookieKey,
			"oauth_flow_key": c.OAuthFlowKey,
		} {
			if len(key) < minKeyLen || strings.HasPrefix(key, "dev-only") {
				errs = append(errs, fmt.Errorf("%s must be at least %d bytes and not a dev default", name, minKeyLen))
			}
		}
		if c.IdentityMode == IdentityMemory {
			errs = append(errs, errors.New("identity_mode=memory is not allowed in production"))
		}
	}

	switch c.IdentityMode {
	case IdentityMemory:
	case IdentityGoTrue:
		if c.IdentityURL == "" || c.IdentityAnonKey == "" {
			errs = append(errs, errors.New("identity_mode=gotrue requires identity_url and identity_anon_key"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown identity_mode %q", c.IdentityMode))
	}

	for name, v := range map[string]string{
		"audit_log_auth":     c.AuditAuth,
		"audit_log_tenant":   c.AuditTenant,
		"audit_log_security": c.AuditSecurity,
	} {
		switch v {
		case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			errs = append(errs, fmt.Errorf("%s: unknown destination %q", name, v))
		}
	}

	return errors.Join(errs...)
}
