package organizations_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dalemusser/tenanthub/internal/app/features/organizations"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) *organizations.Handler {
	t.Helper()
	return organizations.NewHandler(testutil.NewTenantResolver(), testutil.NewTargets(t), nil, zap.NewNop())
}

func postSwitch(h *organizations.Handler, tc tenant.Context, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/organizations/switch", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = testutil.WithUser(req, testutil.PlainUser())
	req = tenant.WithContext(req, tc)
	return testutil.Serve(http.HandlerFunc(h.HandleSwitch), req)
}

func twoOrgs() (tenant.Context, primitive.ObjectID) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	return tenant.Context{
		OrganizationID: a,
		Role:           models.RoleOwner,
		Memberships: []models.MembershipView{
			{OrganizationID: a, OrganizationName: "Acme", Role: models.RoleOwner},
			{OrganizationID: b, OrganizationName: "Globex", Role: models.RoleMember},
		},
	}, b
}

func TestHandleSwitch_Member(t *testing.T) {
	h := newTestHandler(t)
	tc, other := twoOrgs()

	rec := postSwitch(h, tc, url.Values{"org_id": {other.Hex()}})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "http://app.example.test/" {
		t.Errorf("Location: got %q", got)
	}
	if testutil.Cookie(rec, tenant.CookieName) == nil {
		t.Error("expected organization cookie to be set")
	}
}

func TestHandleSwitch_KeepsSafeReturn(t *testing.T) {
	h := newTestHandler(t)
	tc, other := twoOrgs()

	rec := postSwitch(h, tc, url.Values{"org_id": {other.Hex()}, "return": {"http://admin.example.test/members"}})
	if got := rec.Header().Get("Location"); got != "http://admin.example.test/members" {
		t.Errorf("Location: got %q", got)
	}

	rec = postSwitch(h, tc, url.Values{"org_id": {other.Hex()}, "return": {"https://evil.example.com/"}})
	if got := rec.Header().Get("Location"); got != "http://app.example.test/" {
		t.Errorf("unsafe return should be ignored, got %q", got)
	}
}

func TestHandleSwitch_NotAMember(t *testing.T) {
	h := newTestHandler(t)
	tc, _ := twoOrgs()

	rec := postSwitch(h, tc, url.Values{"org_id": {primitive.NewObjectID().Hex()}})

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if testutil.Cookie(rec, tenant.CookieName) != nil {
		t.Error("organization cookie must not change")
	}
}

func TestHandleSwitch_BadID(t *testing.T) {
	h := newTestHandler(t)
	tc, _ := twoOrgs()

	rec := postSwitch(h, tc, url.Values{"org_id": {"nope"}})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
