// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging and CORS. Everything below is
// specific to TenantHub and is passed to most lifecycle hooks.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Redis backs the rate-limit counters. Empty disables limiting (fail-open).
	RedisURL string

	// Session bridge cookies
	SessionKey    string // signs the session cookie (32+ bytes in production)
	SessionName   string // default: tenanthub-session
	SessionMaxAge time.Duration
	CookieDomain  string // required in production, e.g. ".tenanthub.com"
	OrgCookieKey  string // signs current_organization_id
	OAuthFlowKey  string // signs the PKCE verifier cookie

	// Absolute base URL of each surface
	WWWBaseURL   string
	AppBaseURL   string
	AdminBaseURL string
	OpsBaseURL   string

	// Identity provider
	IdentityMode    string // "memory" or "gotrue"
	IdentityURL     string
	IdentityAnonKey string
	IdentityTimeout time.Duration
	OAuthProviders  []string

	// Seed account for identity_mode=memory
	DevOpsEmail    string
	DevOpsPassword string

	// Audit logging destinations: all, db, log, off
	AuditAuth     string
	AuditTenant   string
	AuditSecurity string

	// Email/SMTP configuration. An empty host logs invitations instead of sending.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string
	MailSMTPSSL  bool // implicit TLS (port 465 style); STARTTLS otherwise

	// Per-operation deadlines
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration

	// Background invitation cleanup
	InvitationCleanupInterval time.Duration
	InvitationRetention       time.Duration
}
