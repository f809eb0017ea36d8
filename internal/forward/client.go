package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fleetsys/internal/observability/metrics"
)

// Client pushes finalized voyage payloads to the remote vessel-activity
// endpoint.
type Client struct {
	forwardURL string
	tokens     *TokenSource
	client     *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

func NewClient(forwardURL string, tokens *TokenSource, opts ...ClientOption) (*Client, error) {
	if forwardURL == "" {
		return nil, errors.New("forward: empty forward url")
	}
	if tokens == nil {
		return nil, errors.New("forward: nil token source")
	}
	c := &Client{
		forwardURL: forwardURL,
		tokens:     tokens,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Push submits one voyage payload. On an authentication failure the cached
// token is dropped, a fresh one is fetched, and the request is retried
// exactly once; a second 401 is surfaced as the push's failure.
func (c *Client) Push(ctx context.Context, payload VoyagePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("forward: encode payload: %w", err)
	}

	status, err := c.send(ctx, body)
	if err != nil {
		metrics.IncForward(metrics.ResultError)
		return err
	}
	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
		metrics.IncForwardRetry()
		status, err = c.send(ctx, body)
		if err != nil {
			metrics.IncForward(metrics.ResultError)
			return err
		}
	}
	if status >= 300 {
		metrics.IncForward(metrics.ResultError)
		return fmt.Errorf("forward: push http %d", status)
	}
	metrics.IncForward(metrics.ResultSuccess)
	return nil
}

func (c *Client) send(ctx context.Context, body []byte) (int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.forwardURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("forward: push: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
