package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/browser"

	"tesla-sdk/internal/apperr"
)

// URLOpener opens a URL for the operator, typically in a web browser.
type URLOpener interface {
	OpenURL(url string) error
}

// URLOpenerFunc adapts a function to URLOpener.
type URLOpenerFunc func(url string) error

func (f URLOpenerFunc) OpenURL(url string) error { return f(url) }

// BrowserOpener opens URLs in the system browser and prints the URL when that fails.
type BrowserOpener struct {
	Out io.Writer
	// Fallback prefixes the printed URL, e.g. "Open this URL to authenticate".
	Fallback string

	open func(string) error
}

// OpenURL never fails; printing the URL is the fallback.
func (b BrowserOpener) OpenURL(url string) error {
	open := b.open
	if open == nil {
		open = browser.OpenURL
	}
	if err := open(url); err == nil {
		return nil
	}

	out := b.Out
	if out == nil {
		out = os.Stdout
	}
	fallback := b.Fallback
	if fallback == "" {
		fallback = "Open this URL"
	}
	fmt.Fprintf(out, "%s: %s\n", fallback, url)
	return nil
}

// Authenticator lets the operator sign in at authURL and returns the URL the
// browser was redirected to afterwards.
type Authenticator interface {
	Authenticate(ctx context.Context, authURL string) (string, error)
}

// PromptAuthenticator opens the authorization URL and reads the redirect URL
// from In. It blocks until a line is read.
type PromptAuthenticator struct {
	Opener URLOpener
	In     io.Reader
	Out    io.Writer
}

// NewPromptAuthenticator returns an authenticator bound to the process's terminal.
func NewPromptAuthenticator() *PromptAuthenticator {
	return &PromptAuthenticator{
		Opener: BrowserOpener{Out: os.Stdout, Fallback: "Open this URL to authenticate"},
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

func (p *PromptAuthenticator) Authenticate(ctx context.Context, authURL string) (string, error) {
	out := p.Out
	if out == nil {
		out = io.Discard
	}

	fmt.Fprintln(out, "Use browser to login. Page Not Found will be shown at success.")
	if p.Opener != nil {
		if err := p.Opener.OpenURL(authURL); err != nil {
			fmt.Fprintf(out, "Open this URL to authenticate: %s\n", authURL)
		}
	} else {
		fmt.Fprintf(out, "Open this URL to authenticate: %s\n", authURL)
	}
	fmt.Fprint(out, "Enter URL after authentication: ")

	if p.In == nil {
		return "", apperr.Configuration("authenticate", "no input reader")
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read redirect url: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", apperr.Configuration("authenticate", "no redirect url entered")
	}
	return line, nil
}
