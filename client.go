package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// TokenProvider supplies the bearer credential attached to outbound requests.
// The client forwards whatever it returns and never inspects it.
type TokenProvider func(ctx context.Context) (string, error)

// StaticTokenProvider returns the same token for every request. Useful for
// service-to-service identity tokens and tests.
func StaticTokenProvider(token string) TokenProvider {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// apiResponse is the envelope every remote endpoint wraps its payload in.
type apiResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Events    []SessionEvent  `json:"events,omitempty"`
}

// Client talks to the remote services: the agent engine stream, the session
// store, and the image analysis function. It retries idempotent JSON calls on
// network failures and 5xx responses with exponential backoff; the stream open
// is never retried (retry policy for streams belongs to the caller).
type Client struct {
	cfg    *Config
	http   *http.Client
	stream *http.Client
	tokens TokenProvider
	logger *slog.Logger
}

// NewClient builds a client from config. The streaming transport bounds the
// wait for response headers but leaves the body read unbounded, so a long
// multi-agent answer is never cut off by the open timeout.
func NewClient(cfg *Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		stream: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: cfg.Timeout},
		},
		logger: slog.Default(),
	}
}

func (c *Client) SetTokenProvider(tp TokenProvider) {
	c.tokens = tp
}

func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// authorize attaches the bearer token when one is available. A failing token
// provider is logged and the request proceeds unauthenticated.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	token, err := c.tokens(ctx)
	if err != nil {
		c.logger.Warn("Failed to obtain auth token", "error", err)
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// doJSON performs one JSON request with retries.
func (c *Client) doJSON(ctx context.Context, method, url string, body any, out *apiResponse) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.authorize(ctx, req)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data))
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data))
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.cfg.RetryCount+1, lastErr)
}

// OpenStream starts the advice stream for one user message. The returned body
// carries "data: "-framed JSON records; the caller owns closing it.
func (c *Client) OpenStream(ctx context.Context, sessionID, message string) (io.ReadCloser, error) {
	body, err := json.Marshal(map[string]string{
		"message":   message,
		"sessionId": sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EngineURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(ctx, req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream connection failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("stream open failed with status %d: %s", resp.StatusCode, string(data))
	}
	return resp.Body, nil
}
