package auth

import "net/http"

// AuthenticatedHeaders returns a copy of base with a bearer Authorization header for token.
// base is not modified.
func AuthenticatedHeaders(base http.Header, token Token) http.Header {
	h := base.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if token.AccessToken != "" {
		h.Set("Authorization", "Bearer "+token.AccessToken)
	}
	return h
}
