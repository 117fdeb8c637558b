package auth

// Terminology: User Identifiers
//   - UserID / userID / user_id: the identity provider's UUID for a user
//   - Email: what the user types to sign in; never used as a key

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/cookies"
	"github.com/dalemusser/tenanthub/internal/app/system/identity"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "tenanthub-session"

	// DevCookieDomain is the shared parent domain outside production, so
	// www.localhost, app.localhost, admin.localhost and ops.localhost all see
	// the same session cookie.
	DevCookieDomain = ".localhost"

	// RefreshMargin is how close to expiry an access token may get before the
	// bridge rotates it.
	RefreshMargin = 90 * time.Second

	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
	expiresAtKey    = "expires_at"

	maxCookieLength = 4096
)

// CookieDomain returns the domain attribute for every cookie the app writes.
// Production uses the configured domain. Elsewhere the configured value wins
// if set, otherwise DevCookieDomain.
func CookieDomain(prod bool, configured string) string {
	if prod || configured != "" {
		return configured
	}
	return DevCookieDomain
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const currentUserKey ctxKey = "currentUser"

type requestState struct {
	user    *models.User
	session identity.Session
}

// CurrentUser returns the user verified by the provider for this request.
func CurrentUser(r *http.Request) (*models.User, bool) {
	st, ok := r.Context().Value(currentUserKey).(*requestState)
	if !ok || st.user == nil {
		return nil, false
	}
	return st.user, true
}

// CurrentSession returns the token pair that authenticated this request.
func CurrentSession(r *http.Request) (identity.Session, bool) {
	st, ok := r.Context().Value(currentUserKey).(*requestState)
	if !ok {
		return identity.Session{}, false
	}
	return st.session, true
}

// WithTestUser injects a user into the request context.
// This is exported for use in tests only.
func WithTestUser(r *http.Request, u *models.User) *http.Request {
	return withState(r, &requestState{user: u})
}

func withState(r *http.Request, st *requestState) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, st))
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager bridges the provider's session into one cookie shared by
// every subdomain and keeps it fresh.
type SessionManager struct {
	store    *sessions.CookieStore
	name     string
	provider identity.Provider
	log      *zap.Logger

	loginURL func(*http.Request) string
	now      func() time.Time
}

// NewSessionManager creates the cookie store. domain must be the shared
// parent domain (see CookieDomain); an empty domain scopes the cookie to one
// host and breaks cross-subdomain sessions, so it is logged loudly.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, provider identity.Provider, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if provider == nil {
		return nil, errors.New("identity provider is required")
	}
	if name == "" {
		name = DefaultSessionName
	}
	if domain == "" {
		logger.Warn("session cookie domain is empty; sessions will not be shared across subdomains")
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// Provider JWTs are long; keep the encoded pair within one browser cookie.
	for _, c := range store.Codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxLength(maxCookieLength)
		}
	}

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{
		store:    store,
		name:     name,
		provider: provider,
		log:      logger,
		loginURL: func(*http.Request) string { return "/login" },
		now:      time.Now,
	}, nil
}

// SetLoginURL sets how RequireSignedIn finds the login surface for a request.
func (sm *SessionManager) SetLoginURL(fn func(*http.Request) string) {
	if fn != nil {
		sm.loginURL = fn
	}
}

// SetClock replaces the clock used for refresh decisions. Tests only.
func (sm *SessionManager) SetClock(now func() time.Time) {
	if now != nil {
		sm.now = now
	}
}

// Name returns the session cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// CookieOptions returns a copy of the cookie attributes the store writes.
func (sm *SessionManager) CookieOptions() sessions.Options {
	return *sm.store.Options
}

// Provider returns the identity provider the bridge verifies against.
func (sm *SessionManager) Provider() identity.Provider { return sm.provider }

// readSession decodes the session cookie. A cookie that fails to decode is
// treated as absent.
func (sm *SessionManager) readSession(r *http.Request) (*sessions.Session, identity.Session) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		sm.log.Debug("session decode failed; treating as signed out", zap.Error(err))
	}
	var s identity.Session
	if v, ok := sess.Values[accessTokenKey].(string); ok {
		s.AccessToken = v
	}
	if v, ok := sess.Values[refreshTokenKey].(string); ok {
		s.RefreshToken = v
	}
	if v, ok := sess.Values[expiresAtKey].(int64); ok && v > 0 {
		s.ExpiresAt = time.Unix(v, 0).UTC()
	}
	return sess, s
}

// writeSession queues the session cookie on the request's jar. A failed write
// is logged and swallowed; the jar is the only place cookies get committed.
func (sm *SessionManager) writeSession(r *http.Request, sess *sessions.Session, s identity.Session) {
	sess.Values[accessTokenKey] = s.AccessToken
	sess.Values[refreshTokenKey] = s.RefreshToken
	if s.ExpiresAt.IsZero() {
		delete(sess.Values, expiresAtKey)
	} else {
		sess.Values[expiresAtKey] = s.ExpiresAt.Unix()
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.Values, sm.store.Codecs...)
	if err != nil {
		sm.log.Error("session encode failed", zap.Error(err))
		return
	}
	if err := cookies.Set(r, sessions.NewCookie(sess.Name(), encoded, sess.Options)); err != nil {
		sm.log.Debug("session cookie write dropped", zap.Error(err))
	}
}

// StartSession stores a freshly issued session (sign-in, sign-up, OAuth
// callback) in the shared cookie.
func (sm *SessionManager) StartSession(r *http.Request, s identity.Session) {
	sess, _ := sm.readSession(r)
	sm.writeSession(r, sess, s)
}

// SetSession adopts a token pair obtained outside the server (for example
// from a client-side OAuth flow). The pair is verified with the provider,
// rotated if the access token is no longer accepted, and then stored.
func (sm *SessionManager) SetSession(ctx context.Context, r *http.Request, accessToken, refreshToken string) (models.User, error) {
	s := identity.Session{AccessToken: accessToken, RefreshToken: refreshToken}
	user, err := sm.provider.GetUser(ctx, s.AccessToken)
	if errors.Is(err, identity.ErrUnauthenticated) && s.RefreshToken != "" {
		s, err = sm.provider.Refresh(ctx, s.RefreshToken)
		if err != nil {
			return models.User{}, err
		}
		user, err = sm.provider.GetUser(ctx, s.AccessToken)
	}
	if err != nil {
		return models.User{}, err
	}
	sm.StartSession(r, s)
	return user, nil
}

// ClearSession queues deletion of the session cookie with the same domain
// and path it was written with.
func (sm *SessionManager) ClearSession(r *http.Request) {
	opts := sm.CookieOptions()
	c := sessions.NewCookie(sm.name, "", &opts)
	if err := cookies.Delete(r, c); err != nil {
		sm.log.Debug("session cookie delete dropped", zap.Error(err))
	}
}

// LoadSessionUser resolves the current user on every request.
//
// The provider is always asked who owns the access token; a cookie alone is
// never trusted, because only that call notices revocation. Tokens at or near
// expiry are rotated first and the new pair is written back through the jar.
// Every failure resolves to "no user".
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, s := sm.readSession(r)
		if !s.Valid() {
			next.ServeHTTP(w, r)
			return
		}

		user, s, ok := sm.resolve(r, sess, s)
		if ok {
			r = withState(r, &requestState{user: &user, session: s})
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) resolve(r *http.Request, sess *sessions.Session, s identity.Session) (models.User, identity.Session, bool) {
	ctx := r.Context()
	refreshed := false

	if s.NeedsRefresh(sm.now(), RefreshMargin) {
		ns, err := sm.refresh(ctx, r, sess, s)
		if err != nil {
			return models.User{}, s, false
		}
		s, refreshed = ns, true
	}

	user, err := sm.provider.GetUser(ctx, s.AccessToken)
	if errors.Is(err, identity.ErrUnauthenticated) && !refreshed {
		// Expiry we could not see locally (clock skew, early revocation of
		// the access token only). One rotation attempt.
		ns, rerr := sm.refresh(ctx, r, sess, s)
		if rerr != nil {
			return models.User{}, s, false
		}
		s = ns
		user, err = sm.provider.GetUser(ctx, s.AccessToken)
	}
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			sm.log.Debug("session not accepted by provider", zap.Error(err))
		} else {
			sm.log.Warn("identity provider unavailable; treating request as signed out", zap.Error(err))
		}
		return models.User{}, s, false
	}
	return user, s, true
}

func (sm *SessionManager) refresh(ctx context.Context, r *http.Request, sess *sessions.Session, s identity.Session) (identity.Session, error) {
	ns, err := sm.provider.Refresh(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidGrant) {
			// The refresh token is dead; stop replaying it on every request.
			sm.log.Debug("refresh token rejected; clearing session", zap.Error(err))
			sm.ClearSession(r)
		} else {
			sm.log.Warn("session refresh failed", zap.Error(err))
		}
		return identity.Session{}, err
	}
	sm.writeSession(r, sess, ns)
	return ns, nil
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to the login surface
//   - HTML: 303 redirect to the login surface with ?return=
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		dest := withReturn(sm.loginURL(r), currentURL(r))

		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", dest)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if wantsHTML(r) {
			http.Redirect(w, r, dest, http.StatusSeeOther)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

// helpers

func withReturn(loginURL, ret string) string {
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	return loginURL + sep + "return=" + url.QueryEscape(ret)
}

func wantsHTML(r *http.Request) bool {
	// Very light heuristic: treat it as HTML if it's HTMX or Accepts text/html.
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html")
}

// currentURL preserves scheme, host, path and query so the login surface on
// another subdomain can send the user back.
func currentURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
