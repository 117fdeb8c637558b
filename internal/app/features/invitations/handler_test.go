package invitations_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/features/invitations"
	invitationstore "github.com/dalemusser/tenanthub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	"github.com/dalemusser/tenanthub/internal/app/system/mailer"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, limiter *ratelimit.Limiter) (*invitations.Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := invitations.NewHandler(
		db,
		testutil.NewTenantResolver(),
		limiter,
		mailer.New(mailer.Config{}, logger),
		testutil.NewTargets(t),
		nil,
		uierrors.NewErrorLogger(logger),
		logger,
	)
	return h, db
}

func postInvite(h *invitations.Handler, orgID primitive.ObjectID, email, role string) *httptest.ResponseRecorder {
	form := url.Values{"email": {email}, "role": {role}}
	req := httptest.NewRequest(http.MethodPost, "/invitations", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = testutil.WithUser(req, testutil.PlainUser())
	req = testutil.WithTenant(req, orgID, models.RoleOwner)
	return testutil.Serve(http.HandlerFunc(h.HandleCreate), req)
}

func TestHandleCreate_ReturnsAcceptLink(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	orgID := primitive.NewObjectID()

	rec := postInvite(h, orgID, "new@example.com", "admin")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	var out struct {
		AcceptLink string `json:"accept_link"`
		Role       string `json:"role"`
		Emailed    bool   `json:"emailed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.HasPrefix(out.AcceptLink, "http://app.example.test/invitations/") {
		t.Errorf("accept_link: got %q", out.AcceptLink)
	}
	if out.Role != "admin" {
		t.Errorf("role: got %q", out.Role)
	}
	if out.Emailed {
		t.Error("log-only mailer must not report the email as sent")
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	orgID := primitive.NewObjectID()

	tests := []struct {
		name, email, role string
	}{
		{"bad email", "not-an-email", "member"},
		{"owner role", "a@example.com", "owner"},
		{"unknown role", "a@example.com", "superuser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postInvite(h, orgID, tt.email, tt.role)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestHandleCreate_RateLimitedPerOrganization(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	h, _ := newTestHandler(t, ratelimit.New(ratelimit.NewRedisCounter(client), zap.NewNop()))

	orgID := primitive.NewObjectID()
	for i := 0; i < ratelimit.Invitation.Limit; i++ {
		if rec := postInvite(h, orgID, "a@example.com", "member"); rec.Code != http.StatusCreated {
			t.Fatalf("invite %d: expected status %d, got %d", i+1, http.StatusCreated, rec.Code)
		}
	}

	rec := postInvite(h, orgID, "a@example.com", "member")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !mr.Exists("rl:invitation:" + orgID.Hex()) {
		t.Error("expected counter under the organization key")
	}

	// Another organization has its own budget.
	if rec := postInvite(h, primitive.NewObjectID(), "a@example.com", "member"); rec.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
}

func accept(h *invitations.Handler, u models.User, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/invitations/"+token+"/accept", nil)
	req = testutil.WithChiURLParam(req, "token", token)
	req = testutil.WithUser(req, u)
	return testutil.Serve(http.HandlerFunc(h.HandleAccept), req)
}

func TestHandleAccept_CreatesMembershipOnce(t *testing.T) {
	h, db := newTestHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")
	u := testutil.PlainUser()
	inv, err := invitationstore.New(db).Create(ctx, org.ID, strings.ToUpper(u.Email), models.RoleAdmin, "owner-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := accept(h, u, inv.Token)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "http://app.example.test/" {
		t.Errorf("Location: got %q", got)
	}
	if testutil.Cookie(rec, tenant.CookieName) == nil {
		t.Error("expected organization cookie to be set")
	}

	m, err := membershipstore.New(db).Get(ctx, org.ID, u.ID)
	if err != nil {
		t.Fatalf("Get membership: %v", err)
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("role: got %q, want admin", m.Role)
	}

	if rec := accept(h, u, inv.Token); rec.Code != http.StatusGone {
		t.Errorf("second accept: expected status %d, got %d", http.StatusGone, rec.Code)
	}
}

type failingMemberships struct{ err error }

func (f failingMemberships) Add(context.Context, primitive.ObjectID, string, models.Role) (models.Membership, error) {
	return models.Membership{}, f.err
}

func TestHandleAccept_FailedMembershipKeepsInvitation(t *testing.T) {
	h, db := newTestHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")
	u := testutil.PlainUser()
	invites := invitationstore.New(db)
	inv, err := invites.Create(ctx, org.ID, u.Email, models.RoleMember, "owner-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	h.Memberships = failingMemberships{err: errors.New("connection reset")}
	if rec := accept(h, u, inv.Token); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	if _, err := invites.GetPending(ctx, inv.Token); err != nil {
		t.Fatalf("invitation should still be pending, got %v", err)
	}

	h.Memberships = membershipstore.New(db)
	if rec := accept(h, u, inv.Token); rec.Code != http.StatusSeeOther {
		t.Fatalf("retry: expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if _, err := membershipstore.New(db).Get(ctx, org.ID, u.ID); err != nil {
		t.Errorf("expected membership after retry, got %v", err)
	}
}

func TestHandleAccept_Refusals(t *testing.T) {
	h, db := newTestHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")
	inv, err := invitationstore.New(db).Create(ctx, org.ID, "someone-else@example.com", models.RoleMember, "owner-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec := accept(h, testutil.PlainUser(), inv.Token); rec.Code != http.StatusForbidden {
		t.Errorf("wrong email: expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if rec := accept(h, testutil.PlainUser(), "no-such-token"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown token: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServeView(t *testing.T) {
	h, db := newTestHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := testutil.NewFixtures(t, db).CreateOrganization(ctx, "Acme")
	u := testutil.PlainUser()
	inv, _ := invitationstore.New(db).Create(ctx, org.ID, u.Email, models.RoleMember, "owner-1")

	req := testutil.WithChiURLParam(httptest.NewRequest(http.MethodGet, "/invitations/"+inv.Token, nil), "token", inv.Token)
	rec := httptest.NewRecorder()
	h.ServeView(rec, testutil.WithUser(req, u))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"organization_name":"Acme"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
