package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
)

// Client talks to an external sentiment-classification service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.SentimentAnalyzer = (*Client)(nil)

// NewClient creates a reusable HTTP client; timeout defaults to 15s.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Analyze sends the text for classification and returns the score triple.
func (c *Client) Analyze(ctx context.Context, text string) (domain.Sentiment, error) {
	if c == nil || c.endpoint == "" {
		return domain.Sentiment{}, fmt.Errorf("sentiment client misconfigured")
	}

	var resp domain.Sentiment
	if err := c.post(ctx, "/sentiment", map[string]any{"text": text}, &resp); err != nil {
		return domain.Sentiment{}, err
	}

	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
