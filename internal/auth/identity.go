package auth

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"tesla-sdk/internal/apperr"
)

// VerifyIdentity verifies the id_token issued with the current token against
// the SSO service's published keys and returns its claims. It fails with a
// configuration error when the token belongs to a different account.
func (s *Session) VerifyIdentity(ctx context.Context) (*IdentityClaims, error) {
	const op = "verify identity"

	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return nil, apperr.Configuration(op, "not authorized")
	}
	rawIDToken := s.token.IDToken()
	issuer := strings.TrimSuffix(resolve(s.ssoBaseURL, IssuerPath), "/")
	s.mu.Unlock()

	if rawIDToken == "" {
		return nil, apperr.Protocol(op, "token has no id_token", nil)
	}

	ctx = withHTTPClient(ctx, s.client.HTTPClient())
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, apperr.Protocol(op, "discover "+issuer, err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: s.client.clientID,
		Now:      s.clock,
	})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperr.Protocol(op, "invalid id_token", err)
	}

	var claims IdentityClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperr.Protocol(op, "failed to parse claims", err)
	}
	if claims.Email != "" && !strings.EqualFold(claims.Email, s.identity) {
		return nil, apperr.Configuration(op, "signed in as "+claims.Email+", not "+s.identity)
	}
	return &claims, nil
}
