// Package identity is the boundary to the hosted identity provider.
//
// The provider owns users, credentials and sessions. The application only
// relays the session token pair through cookies and asks the provider who the
// current user is on every request.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
)

var (
	// ErrUnauthenticated means the access token is missing, expired or revoked.
	ErrUnauthenticated = errors.New("identity: not authenticated")
	// ErrInvalidCredentials means email/password did not match.
	ErrInvalidCredentials = errors.New("identity: invalid login credentials")
	// ErrUserExists means sign-up was attempted for a registered email.
	ErrUserExists = errors.New("identity: user already registered")
	// ErrInvalidGrant means a refresh token or one-time code was rejected.
	ErrInvalidGrant = errors.New("identity: invalid grant")
)

// Session is the token pair issued by the provider.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the session carries tokens at all.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// NeedsRefresh reports whether the access token expires within margin of now.
// A zero ExpiresAt is treated as unknown and never forces a refresh.
func (s Session) NeedsRefresh(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

// AuthResult is what sign-in style calls return. Session is nil when the
// provider created the user but withheld a session (e.g. email confirmation).
type AuthResult struct {
	User    models.User
	Session *Session
}

// Provider is the set of provider calls the application consumes.
type Provider interface {
	// GetUser resolves an access token to its user. Returns ErrUnauthenticated
	// when the token is not accepted.
	GetUser(ctx context.Context, accessToken string) (models.User, error)

	// Refresh exchanges a refresh token for a new session.
	Refresh(ctx context.Context, refreshToken string) (Session, error)

	// ExchangeCode trades a one-time OAuth code (plus PKCE verifier) for a session.
	ExchangeCode(ctx context.Context, code, verifier string) (AuthResult, error)

	SignInWithPassword(ctx context.Context, email, password string) (AuthResult, error)
	SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (AuthResult, error)

	// SignOut invalidates the session server-side.
	SignOut(ctx context.Context, accessToken string) error

	// ResetPasswordForEmail asks the provider to mail a reset link.
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error

	// AuthorizeURL is where the browser goes to start an OAuth sign-in.
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
}
