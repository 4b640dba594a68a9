// Package apperr defines the error categories surfaced by the SDK.
package apperr

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	// KindConfiguration is a caller mistake such as a missing identity or refresh token.
	KindConfiguration Kind = "configuration"
	// KindCache is an unreadable or unwritable token cache. The session logs and absorbs it.
	KindCache Kind = "cache"
	// KindProtocol is a malformed response from the SSO service or the API.
	KindProtocol Kind = "protocol"
	// KindTransport is a network failure or a non-2xx HTTP status.
	KindTransport Kind = "transport"
)

// Sentinels for errors.Is matching on the kind alone.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrCache         = &Error{Kind: KindCache}
	ErrProtocol      = &Error{Kind: KindProtocol}
	ErrTransport     = &Error{Kind: KindTransport}
)

// Error is a categorized SDK error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status and Body are only set for transport errors that carry an HTTP response.
	Status int
	Body   string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + truncate(e.Body, 256)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when the target carries no operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// Configuration returns a configuration error.
func Configuration(op, message string) error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// Cache wraps a cache failure.
func Cache(op string, err error) error {
	return &Error{Kind: KindCache, Op: op, Err: err}
}

// Protocol returns a protocol error. err may be nil.
func Protocol(op, message string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Message: message, Err: err}
}

// Transport returns a transport error carrying the HTTP status and body when known.
func Transport(op string, status int, body string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Status: status, Body: body, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// StatusCode returns the HTTP status carried by a transport error, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
