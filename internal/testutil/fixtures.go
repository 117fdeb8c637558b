package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization inserts an organization named name with a slug derived
// from its id, so repeated names never collide.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	id := primitive.NewObjectID()
	org := models.Organization{
		ID:                 id,
		Name:               name,
		NameCI:             text.Fold(name),
		Slug:               "org-" + id.Hex(),
		Plan:               models.PlanFree,
		SubscriptionStatus: models.SubscriptionActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// AddMembership inserts an active membership created at createdAt.
func (f *Fixtures) AddMembership(ctx context.Context, orgID primitive.ObjectID, userID string, role models.Role, createdAt time.Time) models.Membership {
	f.t.Helper()

	m := models.Membership{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if _, err := f.db.Collection("memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// RemoveMembership soft-deletes a membership directly.
func (f *Fixtures) RemoveMembership(ctx context.Context, id primitive.ObjectID) {
	f.t.Helper()

	now := time.Now().UTC()
	_, err := f.db.Collection("memberships").UpdateByID(ctx, id,
		map[string]any{"$set": map[string]any{"deleted_at": now}})
	if err != nil {
		f.t.Fatalf("failed to remove test membership: %v", err)
	}
}
