// Package letta is the HTTP client for the Letta agent-messaging API. The
// core consumes it through two capabilities only: Deliver and AgentExists.
package letta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds Letta API connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// MaxAttempts bounds the retries inside a single Deliver call.
	MaxAttempts int
}

// Client talks to a Letta server. Retry/backoff for a single delivery is
// handled here and is opaque to the execution loop: the loop only sees the
// final boolean.
type Client struct {
	baseURL    string
	apiKey     string
	maxTries   int
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Letta API client.
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxTries := cfg.MaxAttempts
	if maxTries == 0 {
		maxTries = 3
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		maxTries: maxTries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type messageCreate struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createMessagesRequest struct {
	Messages []messageCreate `json:"messages"`
}

// Deliver sends a prompt message to an agent, retrying with exponential
// backoff (1s, 2s, 4s) on failure. Returns whether the message was
// accepted; all failure detail stays in the logs.
func (c *Client) Deliver(ctx context.Context, agentID, text string) bool {
	requestID := uuid.NewString()

	for attempt := 1; attempt <= c.maxTries; attempt++ {
		err := c.sendMessage(ctx, agentID, text, requestID)
		if err == nil {
			c.logger.Info("prompt delivered",
				zap.String("agent_id", agentID),
				zap.String("request_id", requestID),
				zap.Int("attempt", attempt),
			)
			return true
		}

		c.logger.Warn("delivery attempt failed",
			zap.String("agent_id", agentID),
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxTries),
			zap.Error(err),
		)

		if attempt == c.maxTries {
			break
		}

		backoff := time.Duration(1<<(attempt-1)) * time.Second
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}

	c.logger.Error("all delivery attempts failed",
		zap.String("agent_id", agentID),
		zap.String("request_id", requestID),
	)
	return false
}

func (c *Client) sendMessage(ctx context.Context, agentID, text, requestID string) error {
	body, err := json.Marshal(createMessagesRequest{
		Messages: []messageCreate{{Role: "user", Content: text}},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/agents/%s/messages", c.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("letta returned status %d: %s", resp.StatusCode, string(preview))
	}

	return nil
}

// AgentExists checks whether an agent id is known to the Letta server.
func (c *Client) AgentExists(ctx context.Context, agentID string) (bool, error) {
	url := fmt.Sprintf("%s/v1/agents/%s", c.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("query agent: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("letta returned status %d: %s", resp.StatusCode, string(preview))
	}
}

// Ping checks that the Letta server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/health", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping letta: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("letta health returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "promptyoself/1.0")
	req.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
