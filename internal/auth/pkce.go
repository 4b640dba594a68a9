package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// ChallengeMethod is the only PKCE method the SSO service accepts.
const ChallengeMethod = "S256"

// CodeVerifier is a PKCE code verifier (RFC 7636 section 4.1).
type CodeVerifier string

// CodeChallenge is the S256 challenge derived from a CodeVerifier.
type CodeChallenge string

// Generator produces PKCE code verifiers.
type Generator struct {
	// Rand is the random source. Defaults to crypto/rand.
	Rand io.Reader
}

// Generate returns a fresh verifier: 32 random bytes, base64-url encoded without padding.
// It panics if the random source fails.
func (g Generator) Generate() CodeVerifier {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}

	data := make([]byte, 32)
	if _, err := io.ReadFull(r, data); err != nil {
		panic(fmt.Sprintf("failed to generate code verifier: %v", err))
	}
	return CodeVerifier(base64.RawURLEncoding.EncodeToString(data))
}

// Challenge derives the S256 code challenge from the verifier.
func Challenge(v CodeVerifier) CodeChallenge {
	hash := sha256.Sum256([]byte(v))
	return CodeChallenge(base64.RawURLEncoding.EncodeToString(hash[:]))
}

// ValidVerifier reports whether s satisfies the RFC 7636 verifier length and alphabet.
func ValidVerifier(s string) bool {
	if len(s) < 43 || len(s) > 128 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
