package auth

import (
	"context"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// withHTTPClient makes both x/oauth2 and go-oidc use c for requests issued under ctx.
func withHTTPClient(ctx context.Context, c *http.Client) context.Context {
	if c == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c)
	return oidc.ClientContext(ctx, c)
}

// noRedirectClient returns a copy of c that hands redirects back to the caller.
func noRedirectClient(c *http.Client) *http.Client {
	if c == nil {
		c = http.DefaultClient
	}
	cp := *c
	cp.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cp
}
