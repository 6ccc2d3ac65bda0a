package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "pumped-spatial/0.1"
	defaultTimeout   = 30 * time.Second
	defaultRate      = 10
	defaultBurst     = 5
	maxErrorBody     = 512
)

// Locator returns the base URL of the data service. Clients call it before
// every request, so configuration changes apply without a restart.
type Locator func() (string, error)

// StaticLocator always returns base.
func StaticLocator(base string) Locator {
	return func() (string, error) {
		return base, nil
	}
}

// Client talks to the spatial data service over HTTP.
type Client struct {
	httpClient  *http.Client
	locate      Locator
	userAgent   string
	rateLimiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit allows perSecond requests with the given burst. A zero or
// negative rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.rateLimiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client resolving its base URL through locate.
func NewClient(locate Locator, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		locate:      locate,
		userAgent:   defaultUserAgent,
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRate), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolve joins the located base URL with path.
func (c *Client) resolve(path string) (string, error) {
	base, err := c.locate()
	if err != nil {
		return "", fmt.Errorf("locate service: %w", err)
	}
	if base == "" {
		return "", errors.New("locate service: empty base url")
	}
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("locate service: %w", err)
	}
	return strings.TrimRight(base, "/") + path, nil
}

// getJSON performs a GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	fullURL, err := c.resolve(path)
	if err != nil {
		return &TransportError{Op: op, URL: path, Err: err}
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, URL: fullURL, Err: fmt.Errorf("rate limit: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &TransportError{Op: op, URL: fullURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, URL: fullURL, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{
			Op:         op,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       truncate(b, maxErrorBody),
		}
	}

	if err := json.Unmarshal(b, out); err != nil {
		return &DecodeError{Op: op, URL: fullURL, Err: err}
	}
	if v, ok := out.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return &DecodeError{Op: op, URL: fullURL, Err: err}
		}
	}
	return nil
}
