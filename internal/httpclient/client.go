// Package httpclient is the rate-limited JSON client shared by the embedding,
// expansion, catalogue and chat-model collaborators.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response ends up in HTTPError.
const maxErrorBody = 512

// Config holds the upstream endpoint and limits. The client never retries;
// tool calls get their single retry from toolexec.
type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration // default 30s
	RateLimit   float64       // requests per second, default 10
	RateBurst   int           // default 5
}

// Client is a rate-limited JSON HTTP client bound to one base URL.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client, filling unset fields with defaults.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	return &Client{
		base:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.BearerToken,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// GetJSON issues GET path?query and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.url(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.roundTrip(ctx, http.MethodGet, target, nil, out)
}

// PostJSON posts body as JSON and decodes the response into out (nil skips decoding).
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.roundTrip(ctx, http.MethodPost, c.url(path), data, out)
}

func (c *Client) url(path string) string {
	if path == "" {
		return c.base
	}
	return c.base + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus exposes the status code to error classifiers.
func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

func (e *HTTPError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

func (e *HTTPError) IsServerError() bool { return e.StatusCode >= 500 }
