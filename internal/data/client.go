package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tesla-sdk/internal/apperr"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 8 << 20

// Target is the API a request is sent to: a base URL and the headers,
// including the bearer token, that go with it.
type Target interface {
	BaseURL() string
	Headers(ctx context.Context) (http.Header, error)
}

// Client sends owner API requests and unwraps the {"response": ...} envelope.
// It never refreshes tokens and never retries.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a request client. A nil httpClient gets a 30s timeout.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Get sends a GET for path relative to the target's base URL.
func (c *Client) Get(ctx context.Context, t Target, path string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, t, http.MethodGet, path, params, nil)
}

// Post sends a POST for path relative to the target's base URL. A non-nil
// body is sent as JSON.
func (c *Client) Post(ctx context.Context, t Target, path string, params url.Values, body any) (json.RawMessage, error) {
	return c.do(ctx, t, http.MethodPost, path, params, body)
}

func (c *Client) do(ctx context.Context, t Target, method, path string, params url.Values, body any) (json.RawMessage, error) {
	op := strings.ToLower(method) + " " + path

	endpoint, err := buildURL(t.BaseURL(), path, params)
	if err != nil {
		return nil, apperr.Protocol(op, "invalid request url", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Protocol(op, "encode request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, apperr.Protocol(op, "create request", err)
	}

	headers, err := t.Headers(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, 0, "", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, apperr.Transport(op, resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("owner api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Transport(op, resp.StatusCode, string(respBody), nil)
	}
	return unwrapEnvelope(op, respBody)
}

func unwrapEnvelope(op string, body []byte) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperr.Protocol(op, "response is not a JSON object", err)
	}
	payload, ok := envelope["response"]
	if !ok {
		return nil, apperr.Protocol(op, `response envelope has no "response" key`, nil)
	}
	return payload, nil
}

// buildURL resolves path against base and appends params as a query string.
func buildURL(base, path string, params url.Values) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}

	u := b.ResolveReference(ref)
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
