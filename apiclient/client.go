// Package apiclient issues JSON requests to the remote auth API.
//
// Every request carries the session's bearer token when one is held, and any
// 401 response ends the session, whichever endpoint returned it. Nothing is
// retried and no refresh-token exchange is attempted.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/go-login-portal/session"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 1 << 20

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient sets the underlying client. Its Transport is wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// New creates a Client for baseURL. An empty baseURL is logged, not rejected.
func New(baseURL string, tokens session.TokenSource, inv session.Invalidator, opts ...Option) *Client {
	o := clientOptions{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}
	if baseURL == "" {
		log.Warn().Msg("API base URL is not defined, requests will use bare paths")
	}

	hc := *o.httpClient
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = &bearerTransport{base: base, tokens: tokens, inv: inv}

	return &Client{baseURL: baseURL, http: &hc}
}

func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Do sends body as JSON and decodes a 2xx response into out (when non-nil).
// Non-2xx responses are returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("[apiclient Do] encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("[apiclient Do] build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("[apiclient Do] %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("[apiclient Do] decode %s response: %w", path, err)
	}
	return nil
}
