package identity

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Memory is an in-process Provider for local development and tests.
// It mimics the hosted provider's observable behavior: short-lived access
// tokens, single-use refresh tokens and server-side revocation on sign-out.
type Memory struct {
	mu sync.Mutex

	// AccessTTL is how long an access token is accepted.
	AccessTTL time.Duration
	// Now is the clock; tests advance it to expire tokens.
	Now func() time.Time

	users    map[string]*memUser // by user id
	byEmail  map[string]string   // folded email -> user id
	access   map[string]memToken // access token -> grant
	refresh  map[string]string   // refresh token -> user id
	codes    map[string]string   // one-time OAuth code -> user id
	resets   []string            // emails that requested a reset
	getCalls int
}

type memUser struct {
	user models.User
	hash []byte
}

type memToken struct {
	userID    string
	expiresAt time.Time
}

// bcryptCost is low because Memory never holds real credentials.
const bcryptCost = bcrypt.MinCost

// NewMemory returns an empty Memory provider with a one hour token lifetime.
func NewMemory() *Memory {
	return &Memory{
		AccessTTL: time.Hour,
		Now:       time.Now,
		users:     make(map[string]*memUser),
		byEmail:   make(map[string]string),
		access:    make(map[string]memToken),
		refresh:   make(map[string]string),
		codes:     make(map[string]string),
	}
}

var _ Provider = (*Memory)(nil)

func foldEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issue creates a new token pair for userID. Caller holds mu.
func (m *Memory) issue(userID string) Session {
	s := Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    m.Now().Add(m.AccessTTL).UTC(),
	}
	m.access[s.AccessToken] = memToken{userID: userID, expiresAt: s.ExpiresAt}
	m.refresh[s.RefreshToken] = userID
	return s
}

// AddUser registers a user directly, bypassing sign-up. Returns the user.
func (m *Memory) AddUser(email, password string, isOps bool, meta models.UserMetadata) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return models.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := foldEmail(email)
	if _, ok := m.byEmail[key]; ok {
		return models.User{}, ErrUserExists
	}
	u := models.User{ID: uuid.NewString(), Email: key, IsOps: isOps, Metadata: meta}
	m.users[u.ID] = &memUser{user: u, hash: hash}
	m.byEmail[key] = u.ID
	return u, nil
}

// IssueCode creates a one-time OAuth code for an existing user.
func (m *Memory) IssueCode(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := uuid.NewString()
	m.codes[code] = userID
	return code
}

// GetUserCalls returns how many times GetUser has been called.
func (m *Memory) GetUserCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// ResetRequests returns the emails that requested a password reset.
func (m *Memory) ResetRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resets...)
}

// GetUser implements Provider.
func (m *Memory) GetUser(_ context.Context, accessToken string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	tok, ok := m.access[accessToken]
	if !ok || !m.Now().Before(tok.expiresAt) {
		return models.User{}, ErrUnauthenticated
	}
	u, ok := m.users[tok.userID]
	if !ok {
		return models.User{}, ErrUnauthenticated
	}
	return u.user, nil
}

// Refresh implements Provider. Refresh tokens are single use.
func (m *Memory) Refresh(_ context.Context, refreshToken string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.refresh[refreshToken]
	if !ok {
		return Session{}, ErrInvalidGrant
	}
	delete(m.refresh, refreshToken)
	return m.issue(userID), nil
}

// ExchangeCode implements Provider. The verifier is not checked.
func (m *Memory) ExchangeCode(_ context.Context, code, _ string) (AuthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.codes[code]
	if !ok {
		return AuthResult{}, ErrInvalidGrant
	}
	delete(m.codes, code)
	s := m.issue(userID)
	return AuthResult{User: m.users[userID].user, Session: &s}, nil
}

// SignInWithPassword implements Provider.
func (m *Memory) SignInWithPassword(_ context.Context, email, password string) (AuthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[foldEmail(email)]
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	u := m.users[id]
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	s := m.issue(id)
	return AuthResult{User: u.user, Session: &s}, nil
}

// SignUp implements Provider. Memory never requires email confirmation.
func (m *Memory) SignUp(_ context.Context, email, password string, meta models.UserMetadata) (AuthResult, error) {
	u, err := m.AddUser(email, password, false, meta)
	if err != nil {
		return AuthResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.issue(u.ID)
	return AuthResult{User: u, Session: &s}, nil
}

// SignOut implements Provider. All of the user's tokens are revoked.
func (m *Memory) SignOut(_ context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.access[accessToken]
	if !ok {
		return nil
	}
	for k, v := range m.access {
		if v.userID == tok.userID {
			delete(m.access, k)
		}
	}
	for k, v := range m.refresh {
		if v == tok.userID {
			delete(m.refresh, k)
		}
	}
	return nil
}

// ResetPasswordForEmail implements Provider. Unknown emails succeed silently.
func (m *Memory) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, foldEmail(email))
	return nil
}

// AuthorizeURL implements Provider. It points straight back at redirectTo,
// which is enough for local development without a real OAuth provider.
func (m *Memory) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("code_challenge", codeChallenge)
	sep := "?"
	if strings.Contains(redirectTo, "?") {
		sep = "&"
	}
	return redirectTo + sep + q.Encode()
}
