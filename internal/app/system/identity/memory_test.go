package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/domain/models"
)

func TestMemory_SignInAndGetUser(t *testing.T) {
	ctx := context.Background()
	m := identity.NewMemory()
	u, err := m.AddUser("Owner@Example.com", "s3cret", false, models.UserMetadata{})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	res, err := m.SignInWithPassword(ctx, "owner@example.com", "s3cret")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	got, err := m.GetUser(ctx, res.Session.AccessToken)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("user id: got %q, want %q", got.ID, u.ID)
	}
}

func TestMemory_WrongPassword(t *testing.T) {
	m := identity.NewMemory()
	_, _ = m.AddUser("a@example.com", "right", false, models.UserMetadata{})

	_, err := m.SignInWithPassword(context.Background(), "a@example.com", "wrong")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestMemory_AccessTokenExpires_RefreshRotates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := identity.NewMemory()
	m.Now = func() time.Time { return now }
	m.AccessTTL = time.Minute

	res, err := m.SignUp(ctx, "a@example.com", "pw", models.UserMetadata{})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.GetUser(ctx, res.Session.AccessToken); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	s, err := m.Refresh(ctx, res.Session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := m.GetUser(ctx, s.AccessToken); err != nil {
		t.Fatalf("GetUser after refresh: %v", err)
	}
	if _, err := m.Refresh(ctx, res.Session.RefreshToken); !errors.Is(err, identity.ErrInvalidGrant) {
		t.Errorf("refresh tokens must be single use, got %v", err)
	}
}

func TestMemory_SignOutRevokes(t *testing.T) {
	ctx := context.Background()
	m := identity.NewMemory()
	res, _ := m.SignUp(ctx, "a@example.com", "pw", models.UserMetadata{})

	if err := m.SignOut(ctx, res.Session.AccessToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := m.GetUser(ctx, res.Session.AccessToken); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Errorf("access token should be revoked, got %v", err)
	}
	if _, err := m.Refresh(ctx, res.Session.RefreshToken); !errors.Is(err, identity.ErrInvalidGrant) {
		t.Errorf("refresh token should be revoked, got %v", err)
	}
}

func TestMemory_ExchangeCode(t *testing.T) {
	ctx := context.Background()
	m := identity.NewMemory()
	u, _ := m.AddUser("a@example.com", "pw", true, models.UserMetadata{})
	code := m.IssueCode(u.ID)

	res, err := m.ExchangeCode(ctx, code, "verifier")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if !res.User.IsOps || res.Session == nil {
		t.Errorf("unexpected result %+v", res)
	}
	if _, err := m.ExchangeCode(ctx, code, "verifier"); !errors.Is(err, identity.ErrInvalidGrant) {
		t.Errorf("codes must be single use, got %v", err)
	}
}

func TestSession_NeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"unknown expiry", time.Time{}, false},
		{"far future", now.Add(time.Hour), false},
		{"inside margin", now.Add(30 * time.Second), true},
		{"already expired", now.Add(-time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := identity.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: tt.exp}
			if got := s.NeedsRefresh(now, 90*time.Second); got != tt.want {
				t.Errorf("NeedsRefresh: got %v, want %v", got, tt.want)
			}
		})
	}
}
