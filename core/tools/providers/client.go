package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultAttemptTimeout = 5 * time.Second
	defaultUserAgent      = "ada-core/1.0"

	maxResponseBytes = 2 << 20
)

// Client wraps every external capability behind call-with-timeout lookups.
// Idempotent lookups retry once on a timed-out attempt; nothing else is
// retried.
type Client struct {
	http *http.Client

	openWeatherKey string
	mapsKey        string
	userAgent      string
	attemptTimeout time.Duration
}

type Option func(*Client)

func WithOpenWeatherKey(key string) Option {
	return func(c *Client) { c.openWeatherKey = key }
}

func WithMapsKey(key string) Option {
	return func(c *Client) { c.mapsKey = key }
}

// WithAttemptTimeout bounds a single provider round-trip. The per-call
// deadline enforced by the dispatcher still applies on top.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.attemptTimeout = timeout
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent:      defaultUserAgent,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.openWeatherKey == "" {
		c.openWeatherKey = os.Getenv("OPENWEATHER_API_KEY")
	}
	if c.mapsKey == "" {
		c.mapsKey = os.Getenv("MAPS_API_KEY")
	}

	return c
}

// getJSON performs an idempotent GET, retrying once if the first attempt
// times out while the caller's deadline still has room.
func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	err := c.get(ctx, url, func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
		return nil
	})
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = c.get(ctx, url, func(body io.Reader) error {
			if err := json.NewDecoder(body).Decode(target); err != nil {
				return fmt.Errorf("failed to decode provider response: %w", err)
			}
			return nil
		})
	}
	return err
}

func (c *Client) get(ctx context.Context, url string, consume func(io.Reader) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	return consume(io.LimitReader(resp.Body, maxResponseBytes))
}
