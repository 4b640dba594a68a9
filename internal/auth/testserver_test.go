package auth

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

var testNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return testNow }

// newTestServer starts an HTTP server bound to IPv4-only loopback.
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server: %v", err)
	}

	server := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	server.Start()
	t.Cleanup(server.Close)
	return server
}

// fakeSSO imitates the authorize and token endpoints of the SSO service.
type fakeSSO struct {
	srv *httptest.Server

	mu sync.Mutex
	// authorize behaviour: redirect to redirectTo when set, else reply authorizeStatus
	redirectTo      string
	authorizeStatus int
	authorizeQuery  []map[string][]string
	tokenForms      []map[string][]string
	tokenStatus     int
	tokenBody       string
	code            string
	refreshToken    string
	idToken         string
	issued          int
	discovery       http.HandlerFunc
	keys            http.HandlerFunc
}

func newFakeSSO(t *testing.T) *fakeSSO {
	f := &fakeSSO{
		authorizeStatus: http.StatusOK,
		code:            "auth-code",
		refreshToken:    "refresh-1",
	}

	r := mux.NewRouter()
	r.HandleFunc("/oauth2/v3/authorize", f.authorize).Methods(http.MethodGet)
	r.HandleFunc("/oauth2/v3/token", f.token).Methods(http.MethodPost)
	r.HandleFunc("/oauth2/v3/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		h := f.discovery
		f.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}).Methods(http.MethodGet)
	r.HandleFunc("/oauth2/v3/discovery/keys", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		h := f.keys
		f.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}).Methods(http.MethodGet)

	f.srv = newTestServer(t, r)
	return f
}

// BaseURL returns the server origin with a trailing slash.
func (f *fakeSSO) BaseURL() string { return f.srv.URL + "/" }

// configure mutates the server's behaviour under its lock.
func (f *fakeSSO) configure(fn func(f *fakeSSO)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSSO) authorize(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authorizeQuery = append(f.authorizeQuery, r.URL.Query())
	if f.redirectTo != "" {
		http.Redirect(w, r, f.redirectTo+"?"+r.URL.RawQuery, http.StatusFound)
		return
	}
	w.WriteHeader(f.authorizeStatus)
}

func (f *fakeSSO) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenForms = append(f.tokenForms, r.PostForm)

	if f.tokenStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
		return
	}
	if f.tokenBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.tokenBody))
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != f.code || !f.challengeMatches(r.PostForm.Get("code_verifier")) {
			writeTokenError(w, "invalid_grant")
			return
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != f.refreshToken {
			writeTokenError(w, "invalid_grant")
			return
		}
	default:
		writeTokenError(w, "unsupported_grant_type")
		return
	}

	f.issued++
	body := map[string]any{
		"access_token":  fmt.Sprintf("access-%d", f.issued),
		"refresh_token": f.refreshToken,
		"token_type":    "Bearer",
		"expires_in":    300,
	}
	if f.idToken != "" {
		body["id_token"] = f.idToken
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// challengeMatches checks the verifier against the challenge of the last authorize request.
func (f *fakeSSO) challengeMatches(verifier string) bool {
	if len(f.authorizeQuery) == 0 {
		return false
	}
	q := f.authorizeQuery[len(f.authorizeQuery)-1]
	return len(q["code_challenge"]) == 1 && q["code_challenge"][0] == string(Challenge(CodeVerifier(verifier)))
}

func (f *fakeSSO) lastTokenForm() map[string][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokenForms) == 0 {
		return nil
	}
	return f.tokenForms[len(f.tokenForms)-1]
}

func (f *fakeSSO) tokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokenForms)
}

func writeTokenError(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// memCache is an in-memory TokenCache.
type memCache struct {
	mu      sync.Mutex
	records map[string]CacheRecord
	saves   int
	saveErr error
}

func newMemCache() *memCache {
	return &memCache{records: make(map[string]CacheRecord)}
}

func (c *memCache) Load(identity string) (CacheRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[identity]
	return rec, ok
}

func (c *memCache) Save(identity string, rec CacheRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	c.records[identity] = rec
	return nil
}
