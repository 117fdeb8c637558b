package membershipstore_test

import (
	"errors"
	"testing"
	"time"

	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	"github.com/dalemusser/tenanthub/internal/app/system/indexes"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.uber.org/zap"
)

func TestListActiveForUser_OldestFirstAndSkipsRemoved(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	acme := fx.CreateOrganization(ctx, "Acme")
	beta := fx.CreateOrganization(ctx, "Beta")
	gone := fx.CreateOrganization(ctx, "Gone")

	fx.AddMembership(ctx, beta.ID, "u1", models.RoleMember, base.Add(2*time.Hour))
	fx.AddMembership(ctx, acme.ID, "u1", models.RoleOwner, base.Add(time.Hour))
	removed := fx.AddMembership(ctx, gone.ID, "u1", models.RoleAdmin, base)
	fx.RemoveMembership(ctx, removed.ID)
	fx.AddMembership(ctx, acme.ID, "someone-else", models.RoleMember, base)

	views, err := store.ListActiveForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActiveForUser failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(views))
	}
	if views[0].OrganizationID != acme.ID || views[1].OrganizationID != beta.ID {
		t.Errorf("expected Acme then Beta, got %s then %s", views[0].OrganizationName, views[1].OrganizationName)
	}
	if views[0].Role != models.RoleOwner || views[0].OrganizationName != "Acme" {
		t.Errorf("unexpected first view %+v", views[0])
	}
}

func TestListActiveForUser_NoMemberships(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	views, err := store.ListActiveForUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListActiveForUser failed: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("expected no memberships, got %d", len(views))
	}
}

func TestAdd_DuplicateAndRevive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := membershipstore.New(db)
	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")

	if _, err := store.Add(ctx, org.ID, "owner", models.RoleOwner); err != nil {
		t.Fatalf("Add owner failed: %v", err)
	}
	first, err := store.Add(ctx, org.ID, "u1", models.RoleMember)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add(ctx, org.ID, "u1", models.RoleAdmin); !errors.Is(err, membershipstore.ErrDuplicateMembership) {
		t.Fatalf("expected ErrDuplicateMembership, got %v", err)
	}

	if err := store.SoftDelete(ctx, org.ID, "u1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if _, err := store.Get(ctx, org.ID, "u1"); !errors.Is(err, membershipstore.ErrNotMember) {
		t.Fatalf("expected removed membership to be invisible, got %v", err)
	}

	revived, err := store.Add(ctx, org.ID, "u1", models.RoleAdmin)
	if err != nil {
		t.Fatalf("re-Add failed: %v", err)
	}
	if revived.ID != first.ID {
		t.Errorf("expected the removed membership to be revived")
	}
	if revived.Role != models.RoleAdmin {
		t.Errorf("expected role %q, got %q", models.RoleAdmin, revived.Role)
	}
}

func TestAdd_RejectsUnknownRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")

	if _, err := store.Add(ctx, org.ID, "u1", models.Role("superuser")); !errors.Is(err, membershipstore.ErrBadRole) {
		t.Errorf("expected ErrBadRole, got %v", err)
	}
}

func TestLastOwnerIsProtected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")

	if _, err := store.Add(ctx, org.ID, "owner", models.RoleOwner); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.ChangeRole(ctx, org.ID, "owner", models.RoleMember); !errors.Is(err, membershipstore.ErrLastOwner) {
		t.Errorf("ChangeRole: expected ErrLastOwner, got %v", err)
	}
	if err := store.SoftDelete(ctx, org.ID, "owner"); !errors.Is(err, membershipstore.ErrLastOwner) {
		t.Errorf("SoftDelete: expected ErrLastOwner, got %v", err)
	}

	if _, err := store.Add(ctx, org.ID, "second", models.RoleOwner); err != nil {
		t.Fatalf("Add second owner failed: %v", err)
	}
	if err := store.ChangeRole(ctx, org.ID, "owner", models.RoleAdmin); err != nil {
		t.Errorf("ChangeRole with two owners failed: %v", err)
	}
	n, err := store.CountActiveOwners(ctx, org.ID)
	if err != nil {
		t.Fatalf("CountActiveOwners failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 owner, got %d", n)
	}

	ms, err := store.ListActiveForOrg(ctx, org.ID)
	if err != nil {
		t.Fatalf("ListActiveForOrg failed: %v", err)
	}
	if len(ms) != 2 {
		t.Errorf("expected 2 memberships, got %d", len(ms))
	}
}
