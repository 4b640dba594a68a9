package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"tesla-sdk/internal/apperr"
)

const (
	// ClientID is the public OAuth2 client of the owner API.
	ClientID = "ownerapi"

	DefaultSSOBaseURL  = "https://auth.tesla.com/"
	DefaultRedirectURL = "https://auth.tesla.com/void/callback"

	AuthorizePath = "/oauth2/v3/authorize"
	TokenPath     = "/oauth2/v3/token"
	LogoutPath    = "/oauth2/v3/logout"
	IssuerPath    = "/oauth2/v3"
)

// DefaultScopes are requested on every authorization.
var DefaultScopes = []string{"openid", "email", "offline_access"}

// extra token response fields kept on Token.Extra
var tokenExtras = []string{"id_token", "scope", "state"}

// ClientConfig configures a Client.
type ClientConfig struct {
	ClientID    string
	RedirectURL string
	Scopes      []string
	HTTPClient  *http.Client
}

// Client talks to the SSO service's authorize and token endpoints.
// The SSO base URL is passed per call because it may move between regions.
type Client struct {
	clientID    string
	redirectURL string
	scopes      []string
	httpClient  *http.Client
	noRedirect  *http.Client
}

// NewClient creates a new SSO client
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		clientID:    cfg.ClientID,
		redirectURL: cfg.RedirectURL,
		scopes:      cfg.Scopes,
		httpClient:  cfg.HTTPClient,
	}
	if c.clientID == "" {
		c.clientID = ClientID
	}
	if c.redirectURL == "" {
		c.redirectURL = DefaultRedirectURL
	}
	if c.scopes == nil {
		c.scopes = DefaultScopes
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c.noRedirect = noRedirectClient(c.httpClient)
	return c
}

// HTTPClient returns the client used for SSO requests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// oauth2Config builds the x/oauth2 configuration for one SSO base URL.
func (c *Client) oauth2Config(baseURL string) oauth2.Config {
	return oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: c.redirectURL,
		Scopes:      c.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   resolve(baseURL, AuthorizePath),
			TokenURL:  resolve(baseURL, TokenPath),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the authorization URL with PKCE parameters
func (c *Client) AuthCodeURL(baseURL, state string, challenge CodeChallenge, loginHint string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", string(challenge)),
		oauth2.SetAuthURLParam("code_challenge_method", ChallengeMethod),
	}
	if loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", loginHint))
	}
	cfg := c.oauth2Config(baseURL)
	return cfg.AuthCodeURL(state, opts...)
}

// FollowOnce issues a GET without following redirects.
// It returns the absolute redirect target (empty if none) and the status code.
func (c *Client) FollowOnce(ctx context.Context, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, apperr.Protocol("region lookup", "invalid authorization url", err)
	}

	resp, err := c.noRedirect.Do(req)
	if err != nil {
		return "", 0, apperr.Transport("region lookup", 0, "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if !isRedirect(resp.StatusCode) {
		return "", resp.StatusCode, nil
	}
	loc, err := resp.Location()
	if err != nil {
		return "", resp.StatusCode, nil
	}
	return loc.String(), resp.StatusCode, nil
}

// Exchange exchanges an authorization code for a token using PKCE.
func (c *Client) Exchange(ctx context.Context, baseURL, code string, verifier CodeVerifier, now time.Time) (Token, error) {
	cfg := c.oauth2Config(baseURL)
	tok, err := cfg.Exchange(withHTTPClient(ctx, c.httpClient), code, oauth2.VerifierOption(string(verifier)))
	if err != nil {
		return Token{}, tokenError("exchange code", err)
	}
	return fromOAuth2(tok, now), nil
}

// Refresh exchanges a refresh token for a new token.
func (c *Client) Refresh(ctx context.Context, baseURL, refreshToken string, now time.Time) (Token, error) {
	cfg := c.oauth2Config(baseURL)
	src := cfg.TokenSource(withHTTPClient(ctx, c.httpClient), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, tokenError("refresh token", err)
	}
	out := fromOAuth2(tok, now)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

// fromOAuth2 converts a token, computing expires_at from expires_in with the caller's clock.
func fromOAuth2(tok *oauth2.Token, now time.Time) Token {
	out := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}

	for _, k := range tokenExtras {
		if v := tok.Extra(k); v != nil {
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			out.Extra[k] = v
		}
	}

	var expiresIn int64
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		expiresIn = int64(v)
	case string:
		expiresIn, _ = strconv.ParseInt(v, 10, 64)
	}
	switch {
	case expiresIn > 0:
		out.ExpiresAt = now.Unix() + expiresIn
	case !tok.Expiry.IsZero():
		out.ExpiresAt = tok.Expiry.Unix()
	}
	return out
}

func tokenError(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		return apperr.Transport(op, status, string(rErr.Body), err)
	}
	var uErr *url.Error
	if errors.As(err, &uErr) {
		return apperr.Transport(op, 0, "", err)
	}
	return apperr.Protocol(op, "malformed token response", err)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// resolve joins ref onto base the way a browser resolves a link.
func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return base + ref
	}
	return b.ResolveReference(r).String()
}

// origin returns scheme://host/ of rawURL.
func origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute url: %q", rawURL)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}
