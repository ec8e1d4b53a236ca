// Package peer is the HTTP replication transport. A Client pushes local
// deltas to another replica's POST /api/deltas endpoint and can follow that
// replica's event stream to receive its deltas.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/arbor/internal/replication"
)

// Client talks to one remote replica.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *slog.Logger
	// reconnect paces stream reconnects.
	reconnect *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each push request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithReconnectInterval sets the minimum gap between stream reconnects.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnect = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// New returns a client for the replica served at base, e.g.
// "http://replica-b:8080".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(base, "/"),
		http:      &http.Client{Timeout: 5 * time.Second},
		logger:    slog.Default(),
		reconnect: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the remote replica's base URL.
func (c *Client) Base() string { return c.base }

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Publish posts m to the remote replica.
func (c *Client) Publish(ctx context.Context, m replication.Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("peer: marshal %s: %w", m.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/deltas", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("peer: %s: %w", c.base, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("peer: push to %s: %w", c.base, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer: push to %s: unexpected status %d", c.base, resp.StatusCode)
	}
	return nil
}

var _ replication.Publisher = (*Client)(nil)
