package signup_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/features/signup"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*signup.Handler, *identity.Memory) {
	t.Helper()
	logger := zap.NewNop()
	idp := identity.NewMemory()
	h := signup.NewHandler(testutil.NewSessionManager(t, idp), uierrors.NewErrorLogger(logger), nil,
		testutil.Memberships{}, testutil.NewTargets(t), logger)
	return h, idp
}

func post(h *signup.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return testutil.Serve(http.HandlerFunc(h.HandleSignup), req)
}

func TestHandleSignup_NewUserGoesToOnboarding(t *testing.T) {
	h, idp := newTestHandler(t)

	rec := post(h, url.Values{
		"email":        {"new@example.com"},
		"password":     {"long-enough"},
		"company_name": {"<b>Acme</b>"},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "http://app.example.test/onboarding/organization" {
		t.Errorf("Location: got %q", got)
	}
	if testutil.Cookie(rec, "test-session") == nil {
		t.Error("expected session cookie to be set")
	}

	res, err := idp.SignInWithPassword(t.Context(), "new@example.com", "long-enough")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if res.User.Metadata.CompanyName != "Acme" {
		t.Errorf("expected sanitized company name %q, got %q", "Acme", res.User.Metadata.CompanyName)
	}
}

func TestHandleSignup_Validation(t *testing.T) {
	h, _ := newTestHandler(t)
	tests := []struct {
		name string
		form url.Values
	}{
		{"bad email", url.Values{"email": {"nope"}, "password": {"long-enough"}}},
		{"short password", url.Values{"email": {"a@example.com"}, "password": {"short"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(h, tt.form); rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestHandleSignup_ExistingAccount(t *testing.T) {
	h, idp := newTestHandler(t)
	_, _ = idp.AddUser("taken@example.com", "whatever1", false, models.UserMetadata{})

	rec := post(h, url.Values{"email": {"taken@example.com"}, "password": {"long-enough"}})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}
