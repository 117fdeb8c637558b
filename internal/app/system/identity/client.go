package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.uber.org/zap"
)

// Client talks to a GoTrue-compatible REST API (the auth service of the
// hosted backend). BaseURL is the project URL without the /auth/v1 suffix.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Log     *zap.Logger

	now func() time.Time
}

// NewClient returns a Client. A nil httpClient uses http.DefaultClient, so the
// only deadline is whatever the caller's context carries.
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    httpClient,
		Log:     logger,
		now:     time.Now,
	}
}

var _ Provider = (*Client)(nil)

// wire types

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

type errorResponse struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorCode, e.Error, e.ErrorDescription, e.Msg, e.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

// apiError is returned for non-2xx responses that do not map to a sentinel.
type apiError struct {
	Status int
	Text   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("identity: provider returned %d: %s", e.Status, e.Text)
}

func (u userResponse) toModel() models.User {
	user := models.User{ID: u.ID, Email: u.Email}
	if v, ok := u.AppMetadata["is_ops"].(bool); ok {
		user.IsOps = v
	}
	if v, ok := u.UserMetadata["display_name"].(string); ok {
		user.Metadata.DisplayName = v
	}
	if v, ok := u.UserMetadata["company_name"].(string); ok {
		user.Metadata.CompanyName = v
	}
	return user
}

func (c *Client) toSession(s sessionResponse) Session {
	out := Session{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		out.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).UTC()
	}
	return out
}

func (c *Client) toResult(s sessionResponse) AuthResult {
	var res AuthResult
	if s.User != nil {
		res.User = s.User.toModel()
	}
	if s.AccessToken != "" {
		sess := c.toSession(s)
		res.Session = &sess
	}
	return res
}

// do sends a JSON request to path and decodes a JSON response into out
// (which may be nil).
func (c *Client) do(ctx context.Context, method, path string, bearer string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/auth/v1"+path, rdr)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Log.Debug("identity request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("identity: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var er errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &er)
		return classify(resp.StatusCode, er.text())
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("identity: decode %s response: %w", path, err)
	}
	return nil
}

// classify maps provider error responses to sentinel errors.
func classify(status int, text string) error {
	t := strings.ToLower(text)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if strings.Contains(t, "invalid login credentials") || strings.Contains(t, "invalid_credentials") {
			return ErrInvalidCredentials
		}
		return ErrUnauthenticated
	case strings.Contains(t, "invalid login credentials") || strings.Contains(t, "invalid_credentials"):
		return ErrInvalidCredentials
	case strings.Contains(t, "already registered") || strings.Contains(t, "user_already_exists"):
		return ErrUserExists
	case strings.Contains(t, "invalid_grant") || strings.Contains(t, "refresh token") ||
		strings.Contains(t, "flow_state") || strings.Contains(t, "bad_code_verifier"):
		return ErrInvalidGrant
	}
	return &apiError{Status: status, Text: text}
}

// GetUser implements Provider.
func (c *Client) GetUser(ctx context.Context, accessToken string) (models.User, error) {
	if accessToken == "" {
		return models.User{}, ErrUnauthenticated
	}
	var u userResponse
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return models.User{}, err
	}
	if u.ID == "" {
		return models.User{}, ErrUnauthenticated
	}
	return u.toModel(), nil
}

// Refresh implements Provider.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, ErrInvalidGrant
	}
	var s sessionResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &s); err != nil {
		return Session{}, err
	}
	if s.AccessToken == "" {
		return Session{}, ErrInvalidGrant
	}
	return c.toSession(s), nil
}

// ExchangeCode implements Provider.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (AuthResult, error) {
	var s sessionResponse
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=pkce", "", body, &s); err != nil {
		return AuthResult{}, err
	}
	if s.AccessToken == "" {
		return AuthResult{}, ErrInvalidGrant
	}
	return c.toResult(s), nil
}

// SignInWithPassword implements Provider.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (AuthResult, error) {
	var s sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &s); err != nil {
		return AuthResult{}, err
	}
	return c.toResult(s), nil
}

// SignUp implements Provider. When the project requires email confirmation
// the provider answers with a bare user object and no session.
func (c *Client) SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (AuthResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"display_name": meta.DisplayName,
			"company_name": meta.CompanyName,
		},
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &raw); err != nil {
		return AuthResult{}, err
	}

	var s sessionResponse
	if err := json.Unmarshal(raw, &s); err == nil && s.AccessToken != "" {
		return c.toResult(s), nil
	}
	var u userResponse
	if err := json.Unmarshal(raw, &u); err != nil {
		return AuthResult{}, fmt.Errorf("identity: decode signup response: %w", err)
	}
	return AuthResult{User: u.toModel()}, nil
}

// SignOut implements Provider.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
	if errors.Is(err, ErrUnauthenticated) {
		// Already invalid at the provider; nothing left to revoke.
		return nil
	}
	return err
}

// ResetPasswordForEmail implements Provider.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

// AuthorizeURL implements Provider.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "s256")
	}
	return c.BaseURL + "/auth/v1/authorize?" + q.Encode()
}
