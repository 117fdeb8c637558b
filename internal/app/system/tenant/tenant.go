// Package tenant resolves which organization a signed-in user is acting as.
//
// The selection lives in a signed current_organization_id cookie. It is only
// a hint: the resolver accepts it when it names one of the user's active
// memberships and otherwise falls back to the first membership, rewriting the
// cookie so the next request agrees.
package tenant

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/cookies"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	// CookieName is fixed; other tooling reads it.
	CookieName = "current_organization_id"
	// MaxAge is 30 days (2,592,000 seconds).
	MaxAge = 30 * 24 * time.Hour
)

// ErrNoOrganization means the user has no active memberships. Callers route
// to organization onboarding and must not render tenant-scoped data.
var ErrNoOrganization = errors.New("tenant: user has no organization")

// Context is the resolved tenant state for one request.
type Context struct {
	OrganizationID primitive.ObjectID // zero when the user has no organization
	Role           models.Role
	Memberships    []models.MembershipView // active memberships, server order
}

// HasOrganization reports whether an organization is active.
func (c Context) HasOrganization() bool { return !c.OrganizationID.IsZero() }

// Active returns the membership of the active organization.
func (c Context) Active() (models.MembershipView, bool) {
	for _, m := range c.Memberships {
		if m.OrganizationID == c.OrganizationID && c.HasOrganization() {
			return m, true
		}
	}
	return models.MembershipView{}, false
}

// MembershipSource lists a user's active memberships, oldest first.
type MembershipSource interface {
	ListActiveForUser(ctx context.Context, userID string) ([]models.MembershipView, error)
}

// Resolver reads and writes the selection cookie.
type Resolver struct {
	codec  *securecookie.SecureCookie
	domain string
	secure bool
	log    *zap.Logger
}

// NewResolver creates a Resolver. hashKey signs the cookie value; domain and
// secure must match the session cookie so every surface sees the selection.
func NewResolver(hashKey []byte, domain string, secure bool, logger *zap.Logger) *Resolver {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(MaxAge.Seconds()))
	return &Resolver{codec: codec, domain: domain, secure: secure, log: logger}
}

func (rs *Resolver) cookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Domain:   rs.domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   rs.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Selected returns the organization id stored in the cookie. A missing,
// tampered or malformed cookie yields false.
func (rs *Resolver) Selected(r *http.Request) (primitive.ObjectID, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return primitive.NilObjectID, false
	}
	var hex string
	if err := rs.codec.Decode(CookieName, c.Value, &hex); err != nil {
		rs.log.Debug("organization cookie rejected", zap.Error(err))
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// Resolve picks the active organization from memberships. The result is
// always one of memberships; with none it returns ErrNoOrganization.
func (rs *Resolver) Resolve(r *http.Request, memberships []models.MembershipView) (Context, error) {
	tc := Context{Memberships: memberships}
	if len(memberships) == 0 {
		return tc, ErrNoOrganization
	}

	if id, ok := rs.Selected(r); ok {
		for _, m := range memberships {
			if m.OrganizationID == id {
				tc.OrganizationID, tc.Role = m.OrganizationID, m.Role
				return tc, nil
			}
		}
		rs.log.Debug("stale organization selection; falling back to first membership",
			zap.String("org_id", id.Hex()))
	}

	first := memberships[0]
	tc.OrganizationID, tc.Role = first.OrganizationID, first.Role
	if err := rs.SetActive(r, first.OrganizationID); err != nil {
		rs.log.Debug("organization cookie write dropped", zap.Error(err))
	}
	return tc, nil
}

// SetActive writes the selection cookie for orgID. Membership is the caller's
// responsibility.
func (rs *Resolver) SetActive(r *http.Request, orgID primitive.ObjectID) error {
	encoded, err := rs.codec.Encode(CookieName, orgID.Hex())
	if err != nil {
		return err
	}
	return cookies.Set(r, rs.cookie(encoded, MaxAge))
}

// Clear deletes the selection cookie.
func (rs *Resolver) Clear(r *http.Request) error {
	return cookies.Delete(r, rs.cookie("", 0))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request context                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const tenantKey ctxKey = "tenant"

// FromRequest returns the Context stored by Middleware. ok is false when no
// user is signed in or the memberships could not be loaded.
func FromRequest(r *http.Request) (Context, bool) {
	tc, ok := r.Context().Value(tenantKey).(Context)
	return tc, ok
}

// WithContext returns r carrying tc.
func WithContext(r *http.Request, tc Context) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), tenantKey, tc))
}

// Middleware resolves the tenant for the signed-in user. It must run after
// auth's LoadSessionUser and inside cookies.Middleware.
func (rs *Resolver) Middleware(src MembershipSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.CurrentUser(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), rs.log, "tenant memberships")
			memberships, err := src.ListActiveForUser(ctx, user.ID)
			cancel()
			if err != nil {
				rs.log.Error("failed to load memberships",
					zap.String("user_id", user.ID),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			tc, err := rs.Resolve(r, memberships)
			if err != nil && !errors.Is(err, ErrNoOrganization) {
				rs.log.Error("tenant resolution failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, WithContext(r, tc))
		})
	}
}
