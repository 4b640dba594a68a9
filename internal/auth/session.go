package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"tesla-sdk/internal/apperr"
)

// TokenCache persists one CacheRecord per account identity.
// Load never fails: an unreadable cache is reported as not found.
type TokenCache interface {
	Load(identity string) (CacheRecord, bool)
	Save(identity string, record CacheRecord) error
}

// AuthorizedHook runs after a token has been fetched through the authorization flow.
type AuthorizedHook func(ctx context.Context, token Token) error

// Session owns the SSO base URL and the current token of one account, and
// drives the PKCE authorization, refresh and logout flows.
//
// A Session is meant to be driven from one goroutine; the mutex only keeps
// concurrent readers from observing torn state. Network calls run unlocked.
type Session struct {
	identity  string
	client    *Client
	cache     TokenCache
	clock     func() time.Time
	generator Generator
	logger    *slog.Logger
	opener    URLOpener
	hook      AuthorizedHook

	mu         sync.Mutex
	state      State
	ssoBaseURL string
	token      *Token
	verifier   CodeVerifier
	csrfState  string
}

// Option configures a Session.
type Option func(*Session)

// WithClient sets the SSO client.
func WithClient(c *Client) Option { return func(s *Session) { s.client = c } }

// WithCache sets the token cache. Without one nothing is persisted.
func WithCache(c TokenCache) Option { return func(s *Session) { s.cache = c } }

// WithSSOBaseURL sets the initial SSO base URL.
func WithSSOBaseURL(u string) Option { return func(s *Session) { s.ssoBaseURL = u } }

// WithClock sets the time source used for every expiry computation.
func WithClock(now func() time.Time) Option { return func(s *Session) { s.clock = now } }

// WithGenerator sets the PKCE verifier generator.
func WithGenerator(g Generator) Option { return func(s *Session) { s.generator = g } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithOpener sets the URL opener used for remote sign-out.
func WithOpener(o URLOpener) Option { return func(s *Session) { s.opener = o } }

// WithAuthorizedHook sets a hook run after FetchToken succeeds.
func WithAuthorizedHook(h AuthorizedHook) Option { return func(s *Session) { s.hook = h } }

// NewSession creates a session for identity, typically the account email.
func NewSession(identity string, opts ...Option) (*Session, error) {
	if identity == "" {
		return nil, apperr.Configuration("new session", "email is not set")
	}

	s := &Session{
		identity:   identity,
		ssoBaseURL: DefaultSSOBaseURL,
		clock:      time.Now,
		state:      StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = NewClient(ClientConfig{})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.opener == nil {
		s.opener = BrowserOpener{Fallback: "Open this URL to sign out"}
	}
	s.logger = s.logger.With("identity", identity)
	s.logger.Debug("using SSO service", "url", s.ssoBaseURL)
	return s, nil
}

// Identity returns the account identity.
func (s *Session) Identity() string { return s.identity }

// SSOBaseURL returns the current, possibly region-rewritten, SSO base URL.
func (s *Session) SSOBaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ssoBaseURL
}

// State returns the lifecycle state. An authorized session whose token has
// run out reports StateExpired.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthorized && s.token != nil && s.token.Expired(s.clock()) {
		return StateExpired
	}
	return s.state
}

// CurrentToken returns a copy of the current token.
func (s *Session) CurrentToken() (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return Token{}, false
	}
	return s.token.Clone(), true
}

// IsAuthorized reports whether a token is present, expired or not.
func (s *Session) IsAuthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// IsExpired reports whether the current token has expired.
func (s *Session) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil && s.token.Expired(s.clock())
}

// AuthenticatedHeaders returns base plus the bearer header of the current token.
// It does not refresh; see FreshHeaders.
func (s *Session) AuthenticatedHeaders(base http.Header) http.Header {
	tok, _ := s.CurrentToken()
	return AuthenticatedHeaders(base, tok)
}

// Login restores the token cached for the identity. A valid token authorizes
// the session; an expired one is refreshed. Otherwise, including when the
// refresh is rejected, the session moves to Authorizing and the caller
// continues with Authenticate and FetchToken.
func (s *Session) Login(ctx context.Context) error {
	rec, found := s.loadCache()

	s.mu.Lock()
	if found {
		if rec.URL != "" {
			s.ssoBaseURL = rec.URL
		}
		if !rec.SSO.Empty() {
			tok := rec.SSO.Clone()
			s.token = &tok
		}
	}
	if s.token == nil {
		s.state = StateAuthorizing
		s.mu.Unlock()
		s.logger.Debug("no cached token, authorization required")
		return nil
	}

	expired := s.token.Expired(s.clock())
	expiresAt := s.token.ExpiresAt
	if expired && s.token.RefreshToken == "" {
		s.token = nil
		s.state = StateAuthorizing
		s.mu.Unlock()
		s.logger.Debug("cached token expired without refresh token, authorization required")
		return nil
	}
	s.state = StateAuthorized
	s.mu.Unlock()

	if !expired {
		if expiresAt != 0 {
			s.logger.Debug("cached token valid", "expires_at", time.Unix(expiresAt, 0))
		}
		return nil
	}

	s.logger.Debug("cached token expired, refreshing")
	if _, err := s.RefreshToken(ctx, ""); err != nil {
		s.mu.Lock()
		s.token = nil
		s.state = StateAuthorizing
		s.mu.Unlock()
		s.logger.Warn("refresh of cached token failed, authorization required", "error", err)
	}
	return nil
}

// AuthorizationURL starts an authorization attempt and returns the URL the
// operator must open. It returns "" when the session already holds a token.
//
// The URL is requested once with login_hint set to the identity. When the SSO
// service redirects that request, the redirect target's origin becomes the SSO
// base URL and the redirect target is returned instead.
func (s *Session) AuthorizationURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != nil {
		s.mu.Unlock()
		return "", nil
	}
	s.state = StateAuthorizing
	s.verifier = s.generator.Generate()
	s.csrfState = uuid.NewString()
	base, verifier, state := s.ssoBaseURL, s.verifier, s.csrfState
	s.mu.Unlock()

	challenge := Challenge(verifier)
	withoutHint := s.client.AuthCodeURL(base, state, challenge, "")
	withHint := s.client.AuthCodeURL(base, state, challenge, s.identity)

	location, status, err := s.client.FollowOnce(ctx, withHint)
	if err != nil {
		s.logger.Warn("region lookup failed", "error", err)
		return withoutHint, nil
	}
	if location != "" {
		newBase, err := origin(location)
		if err != nil {
			s.logger.Warn("ignoring region redirect", "location", location, "error", err)
			return withoutHint, nil
		}
		s.mu.Lock()
		s.ssoBaseURL = newBase
		s.mu.Unlock()
		s.logger.Debug("new SSO service URL", "url", newBase)
		return location, nil
	}
	if status >= http.StatusBadRequest {
		s.logger.Debug("region lookup rejected", "status", status)
		return withoutHint, nil
	}
	return withHint, nil
}

// Authenticate builds the authorization URL and hands it to a. It returns the
// redirect URL a collected, or "" when the session already holds a token.
func (s *Session) Authenticate(ctx context.Context, a Authenticator) (string, error) {
	authURL, err := s.AuthorizationURL(ctx)
	if err != nil || authURL == "" {
		return "", err
	}
	return a.Authenticate(ctx, authURL)
}

// FetchToken exchanges the authorization code in redirectURL for a token,
// persists it and runs the authorized hook.
func (s *Session) FetchToken(ctx context.Context, redirectURL string) (Token, error) {
	const op = "fetch token"

	s.mu.Lock()
	if s.token != nil {
		tok := s.token.Clone()
		s.mu.Unlock()
		return tok, nil
	}
	if s.state != StateAuthorizing || s.verifier == "" {
		s.mu.Unlock()
		return Token{}, apperr.Configuration(op, "no authorization in progress")
	}
	base, verifier, state := s.ssoBaseURL, s.verifier, s.csrfState
	s.mu.Unlock()

	code, err := parseAuthorizationResponse(redirectURL, state)
	if err != nil {
		return Token{}, err
	}

	tok, err := s.client.Exchange(ctx, base, code, verifier, s.clock())
	if err != nil {
		return Token{}, err
	}

	s.mu.Lock()
	s.token = &tok
	s.state = StateAuthorized
	s.verifier = ""
	s.csrfState = ""
	s.mu.Unlock()

	s.logger.Info("signed in", "sso", base)
	s.saveCache()

	if s.hook != nil {
		if err := s.hook(ctx, tok.Clone()); err != nil {
			return tok.Clone(), err
		}
	}
	return tok.Clone(), nil
}

// RefreshToken exchanges a refresh token for a new token. explicit overrides
// the refresh token of the current token. On failure the stored token and
// state are left as they were.
func (s *Session) RefreshToken(ctx context.Context, explicit string) (Token, error) {
	const op = "refresh token"

	s.mu.Lock()
	refreshToken := explicit
	if refreshToken == "" && s.token != nil {
		refreshToken = s.token.RefreshToken
	}
	if refreshToken == "" {
		s.mu.Unlock()
		return Token{}, apperr.Configuration(op, "refresh_token is not set")
	}
	prev := s.state
	s.state = StateRefreshing
	base := s.ssoBaseURL
	s.mu.Unlock()

	tok, err := s.client.Refresh(ctx, base, refreshToken, s.clock())
	if err != nil {
		s.mu.Lock()
		s.state = prev
		s.mu.Unlock()
		return Token{}, err
	}

	s.mu.Lock()
	s.token = &tok
	s.state = StateAuthorized
	s.mu.Unlock()

	s.logger.Debug("token refreshed", "expires_at", time.Unix(tok.ExpiresAt, 0))
	s.saveCache()
	return tok.Clone(), nil
}

// ValidToken returns the current token, refreshing it first if it has expired.
func (s *Session) ValidToken(ctx context.Context) (Token, error) {
	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return Token{}, apperr.Configuration("valid token", "not authorized")
	}
	tok := s.token.Clone()
	expired := tok.Expired(s.clock())
	s.mu.Unlock()

	if !expired {
		return tok, nil
	}
	return s.RefreshToken(ctx, "")
}

// FreshHeaders returns base plus the bearer header of a non-expired token.
func (s *Session) FreshHeaders(ctx context.Context, base http.Header) (http.Header, error) {
	tok, err := s.ValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return AuthenticatedHeaders(base, tok), nil
}

// Logout clears the token, persists a tombstone record and returns the SSO
// logout URL. With signOut the URL is also opened in the operator's browser.
// A token still in the cache is logged out even when the session never
// restored it. It returns "" when there is no token anywhere.
func (s *Session) Logout(ctx context.Context, signOut bool) (string, error) {
	s.mu.Lock()
	hasToken := s.token != nil
	s.mu.Unlock()
	if !hasToken {
		rec, found := s.loadCache()
		if !found || rec.SSO.Empty() {
			return "", nil
		}
		s.mu.Lock()
		if rec.URL != "" {
			s.ssoBaseURL = rec.URL
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	logoutURL := resolve(s.ssoBaseURL, LogoutPath+"?client_id="+url.QueryEscape(ClientID))
	s.token = nil
	s.verifier = ""
	s.csrfState = ""
	s.state = StateLoggedOut
	s.mu.Unlock()

	if signOut {
		if err := s.opener.OpenURL(logoutURL); err != nil {
			s.logger.Warn("cannot open logout url", "url", logoutURL, "error", err)
		}
	}

	s.saveCache()
	s.logger.Info("signed out")
	return logoutURL, nil
}

func (s *Session) loadCache() (CacheRecord, bool) {
	if s.cache == nil {
		return CacheRecord{}, false
	}
	rec, ok := s.cache.Load(s.identity)
	if !ok {
		s.logger.Debug("no cached credentials found")
	}
	return rec, ok
}

// saveCache persists the current state. Cache failures are logged, never returned.
func (s *Session) saveCache() {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	rec := CacheRecord{URL: s.ssoBaseURL}
	if s.token != nil {
		rec.SSO = s.token.Clone()
	}
	s.mu.Unlock()

	if err := s.cache.Save(s.identity, rec); err != nil {
		s.logger.Error("cache not updated", "error", err)
	}
}

// parseAuthorizationResponse extracts the code from the redirect URL and checks the CSRF state.
func parseAuthorizationResponse(redirectURL, wantState string) (string, error) {
	const op = "fetch token"

	if redirectURL == "" {
		return "", apperr.Configuration(op, "authorization response url is not set")
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", apperr.Protocol(op, "invalid authorization response url", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		msg := e
		if d := q.Get("error_description"); d != "" {
			msg += ": " + d
		}
		return "", apperr.Protocol(op, "authorization denied: "+msg, nil)
	}
	if got := q.Get("state"); wantState != "" && got != wantState {
		return "", apperr.Protocol(op, "state mismatch", nil)
	}
	code := q.Get("code")
	if code == "" {
		return "", apperr.Protocol(op, "authorization response has no code", nil)
	}
	return code, nil
}
