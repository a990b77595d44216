package llm

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

const systemPrompt = `Classify the sentiment of the user's post. Reply with a single JSON object ` +
	`{"positive": p, "neutral": n, "negative": q} where each value is in [0,1] and the values sum to 1.`

// ChatGPTClient implements ports.SentimentAnalyzer backed by OpenAI-compatible chat completions.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.SentimentAnalyzer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client for the chat completions endpoint.
func NewChatGPTClient(endpoint, model, apiKey string, timeout time.Duration) *ChatGPTClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChatGPTClient{
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze asks the model for a score triple and decodes its JSON reply.
func (c *ChatGPTClient) Analyze(ctx context.Context, text string) (domain.Sentiment, error) {
	if c == nil {
		return domain.Sentiment{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Sentiment{}, fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": text},
		},
		"temperature": 0,
	})
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Sentiment{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Sentiment{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return domain.Sentiment{}, fmt.Errorf("chatgpt response has no choices")
	}

	return parseScores(decoded.Choices[0].Message.Content)
}

// parseScores tolerates fenced code blocks around the JSON object.
func parseScores(content string) (domain.Sentiment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return domain.Sentiment{}, fmt.Errorf("no JSON object in model reply %q", content)
	}

	var s domain.Sentiment
	if err := json.Unmarshal([]byte(content[start:end+1]), &s); err != nil {
		return domain.Sentiment{}, fmt.Errorf("parse model reply: %w", err)
	}
	return s, nil
}
