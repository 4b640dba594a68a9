// Package api wraps the owner API endpoints for accounts, energy sites and vehicles.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"tesla-sdk/internal/apperr"
	"tesla-sdk/internal/data"
)

// Requester sends requests to a target and returns the unwrapped response
// payload. *data.Client implements it.
type Requester interface {
	Get(ctx context.Context, t data.Target, path string, params url.Values) (json.RawMessage, error)
	Post(ctx context.Context, t data.Target, path string, params url.Values, body any) (json.RawMessage, error)
}

// Credentials supplies request headers carrying a non-expired bearer token.
type Credentials interface {
	FreshHeaders(ctx context.Context, base http.Header) (http.Header, error)
}

// Config is what every endpoint wrapper is built from.
type Config struct {
	Requester   Requester
	Credentials Credentials
	// BaseURL is the owner API root, e.g. https://owner-api.teslamotors.com/api/1/.
	BaseURL string
	Headers http.Header
}

// DefaultHeaders returns the headers the mobile app sends.
func DefaultHeaders(userAgent, appUserAgent string) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", userAgent)
	h.Set("X-Tesla-User-Agent", appUserAgent)
	return h
}

var _ Requester = (*data.Client)(nil)

// endpoint is a data.Target whose headers are refreshed through Credentials on every call.
type endpoint struct {
	base    string
	headers http.Header
	creds   Credentials
}

func (e endpoint) BaseURL() string { return e.base }

func (e endpoint) Headers(ctx context.Context) (http.Header, error) {
	return e.creds.FreshHeaders(ctx, e.headers)
}

// sub returns an endpoint rooted at path below the config's base URL.
func (c Config) sub(path string) endpoint {
	base := c.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if path != "" {
		base += strings.Trim(path, "/") + "/"
	}
	return endpoint{base: base, headers: c.Headers.Clone(), creds: c.Credentials}
}

func decode[T any](op string, raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, apperr.Protocol(op, "unexpected response payload", err)
	}
	return out, nil
}
