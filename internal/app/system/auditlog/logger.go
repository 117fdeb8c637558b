// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for one category of events.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration, one destination per category.
type Config struct {
	Auth     string
	Tenant   string
	Security string
}

// Store is where events are persisted.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via Store) and structured logs (via zap).
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. A nil store downgrades "all"/"db" to zap only.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.OrganizationID != nil {
		fields = append(fields, zap.String("organization_id", event.OrganizationID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryTenant:
		s = l.config.Tenant
	case audit.CategorySecurity:
		s = l.config.Security
	}
	if s == "" {
		return All
	}
	return s
}

// Record writes event according to the category's configured destination.
// A nil Logger is a no-op so handlers under test can omit it.
func (l *Logger) Record(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	dest := l.setting(event.Category)
	if dest == Off {
		return
	}
	if dest == All || dest == Log || l.store == nil {
		l.logToZap(event)
	}
	if (dest == All || dest == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func base(r *http.Request, category, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

func orgPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, method string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID = userID
	e.Details = map[string]string{"method": method}
	l.Record(ctx, e)
}

// LoginFailed logs a rejected sign-in. The attempted email is kept for
// correlation with rate-limit events.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email, reason string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginFailed, false)
	e.FailureReason = reason
	e.Details = map[string]string{"email": email}
	l.Record(ctx, e)
}

// SignUp logs a new account.
func (l *Logger) SignUp(ctx context.Context, r *http.Request, userID string, sessionStarted bool) {
	e := base(r, audit.CategoryAuth, audit.EventSignUp, true)
	e.UserID = userID
	e.Details = map[string]string{"session_started": strconv.FormatBool(sessionStarted)}
	l.Record(ctx, e)
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID, surface string) {
	e := base(r, audit.CategoryAuth, audit.EventLogout, true)
	e.UserID = userID
	e.Details = map[string]string{"surface": surface}
	l.Record(ctx, e)
}

// PasswordResetRequested logs a reset request.
func (l *Logger) PasswordResetRequested(ctx context.Context, r *http.Request, email string) {
	e := base(r, audit.CategoryAuth, audit.EventPasswordResetSent, true)
	e.Details = map[string]string{"email": email}
	l.Record(ctx, e)
}

// --- Tenant Events ---

// OrgCreated logs onboarding of a new organization.
func (l *Logger) OrgCreated(ctx context.Context, r *http.Request, actorID string, orgID primitive.ObjectID, name string) {
	e := base(r, audit.CategoryTenant, audit.EventOrgCreated, true)
	e.ActorID = actorID
	e.OrganizationID = orgPtr(orgID)
	e.Details = map[string]string{"name": name}
	l.Record(ctx, e)
}

// OrgSwitched logs a change of active organization.
func (l *Logger) OrgSwitched(ctx context.Context, r *http.Request, userID string, orgID primitive.ObjectID) {
	e := base(r, audit.CategoryTenant, audit.EventOrgSwitched, true)
	e.UserID = userID
	e.OrganizationID = orgPtr(orgID)
	l.Record(ctx, e)
}

// InvitationCreated logs a new invitation.
func (l *Logger) InvitationCreated(ctx context.Context, r *http.Request, actorID string, orgID primitive.ObjectID, email, role string) {
	e := base(r, audit.CategoryTenant, audit.EventInvitationCreated, true)
	e.ActorID = actorID
	e.OrganizationID = orgPtr(orgID)
	e.Details = map[string]string{"email": email, "role": role}
	l.Record(ctx, e)
}

// InvitationAccepted logs a user joining through an invitation.
func (l *Logger) InvitationAccepted(ctx context.Context, r *http.Request, userID string, orgID primitive.ObjectID, role string) {
	e := base(r, audit.CategoryTenant, audit.EventInvitationAccepted, true)
	e.UserID = userID
	e.OrganizationID = orgPtr(orgID)
	e.Details = map[string]string{"role": role}
	l.Record(ctx, e)
}

// MemberRoleChanged logs a role change.
func (l *Logger) MemberRoleChanged(ctx context.Context, r *http.Request, actorID, userID string, orgID primitive.ObjectID, role string) {
	e := base(r, audit.CategoryTenant, audit.EventMemberRoleChanged, true)
	e.ActorID, e.UserID = actorID, userID
	e.OrganizationID = orgPtr(orgID)
	e.Details = map[string]string{"role": role}
	l.Record(ctx, e)
}

// MemberRemoved logs a soft removal.
func (l *Logger) MemberRemoved(ctx context.Context, r *http.Request, actorID, userID string, orgID primitive.ObjectID) {
	e := base(r, audit.CategoryTenant, audit.EventMemberRemoved, true)
	e.ActorID, e.UserID = actorID, userID
	e.OrganizationID = orgPtr(orgID)
	l.Record(ctx, e)
}

// --- Security Events ---

// RateLimited logs a rejected check.
func (l *Logger) RateLimited(ctx context.Context, r *http.Request, prefix, identifier string, res ratelimit.Result) {
	e := base(r, audit.CategorySecurity, audit.EventRateLimited, false)
	e.FailureReason = "rate limit exceeded"
	e.Details = map[string]string{
		"key":      ratelimit.Key(prefix, identifier),
		"current":  strconv.Itoa(res.Current),
		"limit":    strconv.Itoa(res.Limit),
		"reset_in": res.ResetIn.String(),
	}
	l.Record(ctx, e)
}

// RateLimitReset logs an ops reset.
func (l *Logger) RateLimitReset(ctx context.Context, r *http.Request, actorID, prefix, identifier string) {
	e := base(r, audit.CategorySecurity, audit.EventRateLimitReset, true)
	e.ActorID = actorID
	e.Details = map[string]string{"key": ratelimit.Key(prefix, identifier)}
	l.Record(ctx, e)
}
