package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *identity.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return identity.NewClient(srv.URL, "anon-key", srv.Client(), zap.NewNop())
}

func TestClient_GetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("Authorization: got %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey: got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "user-1",
			"email":         "ops@example.com",
			"app_metadata":  map[string]any{"is_ops": true},
			"user_metadata": map[string]any{"display_name": "Ops Person", "company_name": "Acme"},
		})
	})

	u, err := c.GetUser(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	want := models.User{
		ID: "user-1", Email: "ops@example.com", IsOps: true,
		Metadata: models.UserMetadata{DisplayName: "Ops Person", CompanyName: "Acme"},
	}
	if u != want {
		t.Errorf("user: got %+v, want %+v", u, want)
	}
}

func TestClient_GetUser_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":401,"msg":"invalid JWT: token is expired"}`))
	})

	_, err := c.GetUser(context.Background(), "expired")
	if !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestClient_GetUser_EmptyTokenSkipsNetwork(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := c.GetUser(context.Background(), ""); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestClient_Refresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type: got %q", r.URL.Query().Get("grant_type"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-1" {
			t.Errorf("refresh_token: got %q", body["refresh_token"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"expires_at":    int64(1893456000),
		})
	})

	s, err := c.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.AccessToken != "access-2" || s.RefreshToken != "refresh-2" {
		t.Errorf("tokens: got %+v", s)
	}
	if !s.ExpiresAt.Equal(time.Unix(1893456000, 0)) {
		t.Errorf("ExpiresAt: got %v", s.ExpiresAt)
	}
}

func TestClient_Refresh_InvalidGrant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token: Already Used"}`))
	})

	_, err := c.Refresh(context.Background(), "used")
	if !errors.Is(err, identity.ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant, got %v", err)
	}
}

func TestClient_SignInWithPassword_InvalidCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
	})

	_, err := c.SignInWithPassword(context.Background(), "a@example.com", "nope")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestClient_SignUp_WithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		data, _ := body["data"].(map[string]any)
		if data["company_name"] != "Acme" {
			t.Errorf("company_name: got %v", data["company_name"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "user-9", "email": "new@example.com"})
	})

	res, err := c.SignUp(context.Background(), "new@example.com", "pw", models.UserMetadata{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Session != nil {
		t.Error("expected no session when confirmation is pending")
	}
	if res.User.ID != "user-9" {
		t.Errorf("user id: got %q", res.User.ID)
	}
}

func TestClient_SignUp_Exists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error_code":"user_already_exists","msg":"User already registered"}`))
	})

	_, err := c.SignUp(context.Background(), "a@example.com", "pw", models.UserMetadata{})
	if !errors.Is(err, identity.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestClient_ServerError_IsNotASentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetUser(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, s := range []error{identity.ErrUnauthenticated, identity.ErrInvalidCredentials, identity.ErrInvalidGrant} {
		if errors.Is(err, s) {
			t.Errorf("502 must not map to %v", s)
		}
	}
}

func TestClient_ResetPasswordForEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/recover" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("redirect_to"); got != "https://www.example.test/password/update" {
			t.Errorf("redirect_to: got %q", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	if err := c.ResetPasswordForEmail(context.Background(), "a@example.com", "https://www.example.test/password/update"); err != nil {
		t.Fatalf("ResetPasswordForEmail: %v", err)
	}
}

func TestClient_AuthorizeURL(t *testing.T) {
	c := identity.NewClient("https://project.example.test/", "k", nil, nil)

	raw := c.AuthorizeURL("google", "https://www.example.test/auth/callback", "challenge")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(raw, "https://project.example.test/auth/v1/authorize?") {
		t.Errorf("unexpected URL %q", raw)
	}
	q := u.Query()
	if q.Get("provider") != "google" || q.Get("code_challenge") != "challenge" || q.Get("code_challenge_method") != "s256" {
		t.Errorf("query: got %v", q)
	}
}
