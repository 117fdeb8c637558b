package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/features/dashboard"
	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	invitationstore "github.com/dalemusser/tenanthub/internal/app/store/invitations"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*dashboard.Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return dashboard.NewHandler(db, uierrors.NewErrorLogger(logger), logger), db
}

func TestServeApp_ActiveOrganization(t *testing.T) {
	h, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")

	req := testutil.WithTenant(httptest.NewRequest(http.MethodGet, "/", nil), org.ID, models.RoleMember)
	rec := httptest.NewRecorder()
	h.ServeApp(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var out struct {
		Organization struct {
			Name string `json:"name"`
			Plan string `json:"plan"`
		} `json:"organization"`
		CanAdminister bool `json:"can_administer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out.Organization.Name != "Acme" || out.Organization.Plan != models.PlanFree {
		t.Errorf("unexpected organization %+v", out.Organization)
	}
	if out.CanAdminister {
		t.Error("members cannot administer")
	}
}

func TestServeApp_NoTenant(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeApp(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestServeAdmin_Counts(t *testing.T) {
	h, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	org := fx.CreateOrganization(ctx, "Acme")
	now := time.Now()
	fx.AddMembership(ctx, org.ID, "owner-1", models.RoleOwner, now)
	fx.AddMembership(ctx, org.ID, "admin-1", models.RoleAdmin, now.Add(time.Second))
	gone := fx.AddMembership(ctx, org.ID, "member-1", models.RoleMember, now.Add(2*time.Second))
	fx.RemoveMembership(ctx, gone.ID)
	_, _ = invitationstore.New(db).Create(ctx, org.ID, "new@example.com", models.RoleMember, "owner-1")

	req := testutil.WithTenant(httptest.NewRequest(http.MethodGet, "/", nil), org.ID, models.RoleOwner)
	rec := httptest.NewRecorder()
	h.ServeAdmin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var out struct {
		MembersCount       int `json:"members_count"`
		OwnersCount        int `json:"owners_count"`
		PendingInvitations int `json:"pending_invitations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out.MembersCount != 2 || out.OwnersCount != 1 || out.PendingInvitations != 1 {
		t.Errorf("unexpected counts %+v", out)
	}
}

func TestServeOps(t *testing.T) {
	h, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	fx.CreateOrganization(ctx, "Acme")
	fx.CreateOrganization(ctx, "Globex")
	_ = audit.New(db).Log(ctx, audit.Event{Category: audit.CategorySecurity, EventType: audit.EventRateLimited, IP: "10.0.0.1"})
	_ = audit.New(db).Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true})

	rec := httptest.NewRecorder()
	h.ServeOps(rec, testutil.WithUser(httptest.NewRequest(http.MethodGet, "/", nil), testutil.OpsUser()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var out struct {
		OrgsCount      int64             `json:"orgs_count"`
		RecentOrgs     []json.RawMessage `json:"recent_orgs"`
		SecurityEvents []json.RawMessage `json:"security_events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out.OrgsCount != 2 || len(out.RecentOrgs) != 2 {
		t.Errorf("orgs: count=%d recent=%d", out.OrgsCount, len(out.RecentOrgs))
	}
	if len(out.SecurityEvents) != 1 {
		t.Errorf("expected only security events, got %d", len(out.SecurityEvents))
	}
}
