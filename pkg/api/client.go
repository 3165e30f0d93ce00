// Package api is the HTTP transport for the chat service. It owns the cookie
// jar that carries the session cookie, so the push dialer must share Jar().
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/pkg/metrics"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient bases the client on a copy of hc, so later options never
// modify hc itself. A client without a cookie jar gets a fresh one, since
// the session lives in a cookie. nil keeps the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		clone := *hc
		c.httpClient = &clone
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://localhost:5001/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar returns the cookie jar holding the session cookie.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. endpoint is a low-cardinality label for metrics and logs.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("request failed")
		return &Error{Kind: KindTransport, Message: transportMessage, Err: err}
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: transportMessage, Err: err}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode >= http.StatusBadRequest {
		return newStatusError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindDecode, Status: resp.StatusCode, Err: fmt.Errorf("decoding %s response: %w", endpoint, err)}
	}
	return nil
}

func peerPath(prefix, peerID string) (string, error) {
	if strings.TrimSpace(peerID) == "" {
		return "", ErrMissingPeerID
	}
	return prefix + url.PathEscape(peerID), nil
}
