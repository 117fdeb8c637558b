package testutil

import (
	"net/http"
	"net/http/httptest"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OpsUser returns a user with the operations flag.
func OpsUser() models.User {
	return models.User{ID: uuid.NewString(), Email: "ops@test.com", IsOps: true}
}

// PlainUser returns a signed-in customer user.
func PlainUser() models.User {
	return models.User{ID: uuid.NewString(), Email: "user@test.com"}
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user models.User) *http.Request {
	return auth.WithTestUser(r, &user)
}

// WithTenant attaches a resolved tenant with a single active membership.
func WithTenant(r *http.Request, orgID primitive.ObjectID, role models.Role) *http.Request {
	ms := []models.MembershipView{{OrganizationID: orgID, OrganizationName: "Test Org", Role: role}}
	return tenant.WithContext(r, tenant.Context{OrganizationID: orgID, Role: role, Memberships: ms})
}

// OnSurface tags the request as arriving on s.
func OnSurface(r *http.Request, s subdomain.Surface) *http.Request {
	return subdomain.WithSurface(r, s)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}
