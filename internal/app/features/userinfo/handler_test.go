package userinfo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/tenanthub/internal/app/features/userinfo"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func serve(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	userinfo.NewHandler().ServeUserInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	return body
}

func TestServeUserInfo_Unauthenticated(t *testing.T) {
	body := serve(t, httptest.NewRequest(http.MethodGet, "/api/user", nil))

	if body["isAuthenticated"] != false {
		t.Errorf("expected isAuthenticated=false, got %v", body["isAuthenticated"])
	}
	if _, ok := body["email"]; ok {
		t.Error("anonymous response should not carry an email")
	}
}

func TestServeUserInfo_WithTenant(t *testing.T) {
	u := testutil.PlainUser()
	u.Metadata.DisplayName = "Test User"
	orgID := primitive.NewObjectID()

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req = testutil.WithTenant(testutil.WithUser(req, u), orgID, models.RoleAdmin)
	body := serve(t, req)

	if body["isAuthenticated"] != true {
		t.Errorf("expected isAuthenticated=true, got %v", body["isAuthenticated"])
	}
	if body["id"] != u.ID || body["email"] != u.Email || body["display_name"] != "Test User" {
		t.Errorf("unexpected identity fields %v", body)
	}
	if body["active_organization"] != orgID.Hex() || body["role"] != "admin" {
		t.Errorf("unexpected tenant fields %v", body)
	}
	ms, _ := body["memberships"].([]any)
	if len(ms) != 1 {
		t.Fatalf("expected 1 membership, got %v", body["memberships"])
	}
}

func TestServeUserInfo_OpsWithoutOrganization(t *testing.T) {
	req := testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/user", nil), testutil.OpsUser())
	body := serve(t, req)

	if body["is_ops"] != true {
		t.Errorf("expected is_ops=true, got %v", body["is_ops"])
	}
	if _, ok := body["active_organization"]; ok {
		t.Error("no organization should be reported")
	}
}
