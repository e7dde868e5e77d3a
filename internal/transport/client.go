// Package transport is a small JSON-over-HTTP client with authentication,
// status mapping and retries.
package transport

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
)

const (
	// DefaultHTTPTimeout is the default timeout for a single request.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMaxElapsed bounds the retries of one call.
	DefaultMaxElapsed = 2 * time.Minute
)

// Client provides HTTP client functionality with authentication.
type Client struct {
	http       *http.Client
	auth       Authenticator
	baseURL    string
	headers    http.Header
	maxElapsed time.Duration
	backOff    func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxElapsed bounds the total time spent retrying one call. Zero
// disables retries.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithBackOff overrides the retry schedule. Mostly useful in tests.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.backOff = fn }
}

// New creates a new transport client for baseURL.
func New(baseURL string, auth Authenticator, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:       &http.Client{Timeout: DefaultHTTPTimeout},
		auth:       auth,
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    make(http.Header),
		maxElapsed: DefaultMaxElapsed,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backOff == nil {
		c.backOff = c.defaultBackOff
	}
	return c
}

// BaseURL returns the URL every path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Get performs a GET request and decodes the response into target.
func (c *Client) Get(ctx context.Context, path string, target any) error {
	return c.Do(ctx, http.MethodGet, path, nil, target)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body, target any) error {
	return c.Do(ctx, http.MethodPost, path, body, target)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body, target any) error {
	return c.Do(ctx, http.MethodPut, path, body, target)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends one JSON request and decodes a JSON response into target when
// target is non-nil. Rate limiting, server errors and network failures are
// retried until the max elapsed time runs out; the last error is returned.
func (c *Client) Do(ctx context.Context, method, path string, body, target any) error {
	logger := logging.FromContext(ctx)
	endpoint := c.url(path)

	attempt := 0
	op := func() error {
		attempt++
		err := c.once(ctx, method, endpoint, body, target)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var terr *errors.TransportError
		if stderrors.As(err, &terr) && terr.Retryable() {
			logger.Debug().Err(err).Int("attempt", attempt).Str("method", method).Str("endpoint", endpoint).Msg("Retrying request")
			return err
		}
		return backoff.Permanent(err)
	}

	if c.maxElapsed <= 0 {
		return op()
	}
	return backoff.Retry(op, backoff.WithContext(c.backOff(), ctx))
}

func (c *Client) once(ctx context.Context, method, endpoint string, body, target any) error {
	req, err := newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	c.auth.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapTransport(method, endpoint, err)
	}
	return DecodeResponse(ctx, resp, target)
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = c.maxElapsed
	return b
}
