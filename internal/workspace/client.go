// Package workspace is a minimal JSON REST client for the analytics
// workspace API. It owns request shaping and status handling; callers own
// paths and payload types.
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/aibridge/internal/apierr"
	"github.com/hyperjump/aibridge/pkg/utils"
	"go.uber.org/zap"
)

const (
	mimeJSON          = "application/json"
	headerAccept      = "Accept"
	headerContentType = "Content-Type"
	headerAuth        = "Authorization"

	// DefaultTimeout bounds a single request, not a polling loop.
	DefaultTimeout = 30 * time.Second
)

// Client sends JSON requests to a workspace host.
type Client struct {
	host       string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a logger for request tracing at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for host (scheme included, e.g. https://example.cloud).
func New(host string, opts ...Option) *Client {
	c := &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// Host returns the base URL requests are sent to.
func (c *Client) Host() string { return c.host }

// Do sends method path with body encoded as JSON (nil for none) and decodes
// a JSON response into out (nil to discard). Network failures and non-2xx
// statuses are returned as transport errors.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apierr.Wrap(apierr.Decode, "encode request "+path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return apierr.Wrap(apierr.Transport, "build request "+path, err)
	}
	req.Header.Set(headerAccept, mimeJSON)
	req.Header.Set(headerContentType, mimeJSON)
	if c.token != "" {
		req.Header.Set(headerAuth, "Bearer "+c.token)
	}

	c.logger.Debug("workspace request", zap.String("method", method), zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.Transport, method+" "+path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return apierr.NewHTTPError(method, path, resp.StatusCode, bytes.TrimSpace(b))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Wrap(apierr.Decode, "decode response "+path, err)
	}
	return nil
}
