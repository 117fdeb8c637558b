package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/cookies"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.uber.org/zap"
)

// SessionKey signs session cookies in tests.
const SessionKey = "test-session-key-for-testing-only-0123456789"

// Bases are the surface base URLs used across handler tests.
var Bases = map[subdomain.Surface]string{
	subdomain.WWW:   "http://www.example.test",
	subdomain.App:   "http://app.example.test",
	subdomain.Admin: "http://admin.example.test",
	subdomain.Ops:   "http://ops.example.test",
}

// NewTargets returns router targets for Bases.
func NewTargets(t *testing.T) *router.Targets {
	t.Helper()
	tg, err := router.NewTargets(Bases)
	if err != nil {
		t.Fatalf("NewTargets failed: %v", err)
	}
	return tg
}

// NewSessionManager returns a dev-mode session manager backed by p.
func NewSessionManager(t *testing.T, p identity.Provider) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(SessionKey, "test-session", auth.CookieDomain(false, ""), 24*time.Hour, false, p, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return sm
}

// OrgCookieKey signs the organization selection cookie in tests.
const OrgCookieKey = "test-org-cookie-key-for-testing-only-0123"

// NewTenantResolver returns a host-only resolver for handler tests.
func NewTenantResolver() *tenant.Resolver {
	return tenant.NewResolver([]byte(OrgCookieKey), "", false, zap.NewNop())
}

// Memberships is an in-memory membership source keyed by user id.
type Memberships map[string][]models.MembershipView

// ListActiveForUser implements tenant.MembershipSource.
func (m Memberships) ListActiveForUser(_ context.Context, userID string) ([]models.MembershipView, error) {
	return m[userID], nil
}

// Serve runs h behind the cookie commit layer, the way every surface is
// served in production, and returns the recorded response.
func Serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	cookies.Middleware(zap.NewNop())(h).ServeHTTP(rec, r)
	return rec
}

// Cookie returns the response cookie named name, or nil.
func Cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
