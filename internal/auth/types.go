package auth

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"
)

// Token is an SSO token as issued by the token endpoint.
// Provider-specific fields such as id_token are kept in Extra.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresAt is the absolute expiry in epoch seconds. Zero means unknown.
	ExpiresAt int64
	Extra     map[string]any
}

var knownTokenFields = []string{"access_token", "refresh_token", "token_type", "expires_at"}

// Empty reports whether the token carries no access token.
func (t Token) Empty() bool {
	return t.AccessToken == ""
}

// Expired reports whether expires_at - now <= 0. A token without expiry never expires.
func (t Token) Expired(now time.Time) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return t.ExpiresAt-now.Unix() <= 0
}

// IDToken returns the raw id_token issued alongside the access token, if any.
func (t Token) IDToken() string {
	s, _ := t.Extra["id_token"].(string)
	return s
}

// Clone returns a deep enough copy for Extra to be mutated independently.
func (t Token) Clone() Token {
	t.Extra = maps.Clone(t.Extra)
	return t
}

// MarshalJSON flattens Extra next to the known fields. The zero Token encodes as {}.
func (t Token) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(t.Extra)+len(knownTokenFields))
	for k, v := range t.Extra {
		m[k] = v
	}
	if t.AccessToken != "" {
		m["access_token"] = t.AccessToken
	}
	if t.RefreshToken != "" {
		m["refresh_token"] = t.RefreshToken
	}
	if t.TokenType != "" {
		m["token_type"] = t.TokenType
	}
	if t.ExpiresAt != 0 {
		m["expires_at"] = t.ExpiresAt
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts integer or fractional expires_at values.
func (t *Token) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("token: not an object")
	}

	var out Token
	var err error
	if out.AccessToken, err = stringField(m, "access_token"); err != nil {
		return err
	}
	if out.RefreshToken, err = stringField(m, "refresh_token"); err != nil {
		return err
	}
	if out.TokenType, err = stringField(m, "token_type"); err != nil {
		return err
	}
	if v, ok := m["expires_at"]; ok && v != nil {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("token: expires_at must be a number, got %T", v)
		}
		out.ExpiresAt = int64(f)
	}

	for _, k := range knownTokenFields {
		delete(m, k)
	}
	if len(m) > 0 {
		out.Extra = m
	}
	*t = out
	return nil
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("token: %s must be a string, got %T", key, v)
	}
	return s, nil
}

// CacheRecord is the persisted state of one account identity.
// A record with an empty SSO token is a logout tombstone.
type CacheRecord struct {
	URL string `json:"url"`
	SSO Token  `json:"sso"`
}

// State is the lifecycle state of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthorizing
	StateAuthorized
	StateExpired
	StateRefreshing
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthorizing:
		return "authorizing"
	case StateAuthorized:
		return "authorized"
	case StateExpired:
		return "expired"
	case StateRefreshing:
		return "refreshing"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IdentityClaims are the OIDC claims of the signed-in account.
type IdentityClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Locale        string `json:"locale"`
}
