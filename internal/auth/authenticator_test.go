package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tesla-sdk/internal/apperr"
)

func TestPromptAuthenticator(t *testing.T) {
	var opened []string
	var out bytes.Buffer
	p := &PromptAuthenticator{
		Opener: URLOpenerFunc(func(u string) error {
			opened = append(opened, u)
			return nil
		}),
		In:  strings.NewReader("  https://auth.tesla.com/void/callback?code=c&state=s \n"),
		Out: &out,
	}

	got, err := p.Authenticate(context.Background(), "https://auth.tesla.com/oauth2/v3/authorize?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.tesla.com/void/callback?code=c&state=s", got)
	assert.Equal(t, []string{"https://auth.tesla.com/oauth2/v3/authorize?x=1"}, opened)
	assert.Contains(t, out.String(), "Page Not Found will be shown at success")
	assert.Contains(t, out.String(), "Enter URL after authentication: ")
}

func TestPromptAuthenticator_NoTrailingNewline(t *testing.T) {
	p := &PromptAuthenticator{In: strings.NewReader("https://auth.tesla.com/void/callback?code=c")}

	got, err := p.Authenticate(context.Background(), "https://auth.tesla.com/oauth2/v3/authorize")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.tesla.com/void/callback?code=c", got)
}

func TestPromptAuthenticator_EmptyInput(t *testing.T) {
	p := &PromptAuthenticator{In: strings.NewReader("\n")}

	_, err := p.Authenticate(context.Background(), "https://auth.tesla.com/oauth2/v3/authorize")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestPromptAuthenticator_OpenerFailurePrintsURL(t *testing.T) {
	var out bytes.Buffer
	p := &PromptAuthenticator{
		Opener: URLOpenerFunc(func(string) error { return errors.New("no display") }),
		In:     strings.NewReader("https://auth.tesla.com/void/callback?code=c\n"),
		Out:    &out,
	}

	_, err := p.Authenticate(context.Background(), "https://auth.tesla.com/oauth2/v3/authorize")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Open this URL to authenticate: https://auth.tesla.com/oauth2/v3/authorize")
}

func TestBrowserOpener_Fallback(t *testing.T) {
	var out bytes.Buffer
	b := BrowserOpener{
		Out:      &out,
		Fallback: "Open this URL to sign out",
		open:     func(string) error { return errors.New("no browser") },
	}

	require.NoError(t, b.OpenURL("https://auth.tesla.com/oauth2/v3/logout?client_id=ownerapi"))
	assert.Equal(t, "Open this URL to sign out: https://auth.tesla.com/oauth2/v3/logout?client_id=ownerapi\n", out.String())

	out.Reset()
	b.open = func(string) error { return nil }
	require.NoError(t, b.OpenURL("https://auth.tesla.com/"))
	assert.Empty(t, out.String())
}
