// Package provider implements the upstream market-data client. The core
// treats it as an opaque collaborator: each fetcher either returns a typed
// value or fails with a human-readable message that is passed through to the
// caller unmodified.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"fintools/internal/config"
)

// Client talks to the configured market-data service.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.ProviderConfig, logger *slog.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		logger:    logger.With(slog.String("component", "provider")),
	}
}

// Error is the failure surfaced by any fetcher. Message carries the
// upstream's own wording.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// getJSON performs a GET against path with query and decodes the JSON
// response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("provider: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{StatusCode: resp.StatusCode, Message: upstreamMessage(resp.StatusCode, body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("provider: decode response: %w", err)
	}

	return nil
}

// upstreamMessage extracts the upstream's error wording from a failed
// response body, falling back to the HTTP status text.
func upstreamMessage(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("upstream returned %d %s", status, http.StatusText(status))
}
