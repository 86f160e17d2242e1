package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.vapi.ai"
	defaultUserAgent = "telehealth-reconciler/1.0"
)

var ErrCallNotFound = errors.New("vapi: call not found")

// APIError is returned for non-2xx vendor responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vapi: api error status=%d body=%s", e.StatusCode, e.Body)
}

// Config controls how the vendor client behaves.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client talks to the vendor call API with bearer-token auth.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("vapi: API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// GetCall fetches the current state of a call.
func (c *Client) GetCall(ctx context.Context, callID string) (Call, error) {
	var out Call
	if err := c.do(ctx, http.MethodGet, callID, nil, &out); err != nil {
		return Call{}, err
	}
	return out, nil
}

// UpdateCallRequest is the body of PATCH /call/{id}.
type UpdateCallRequest struct {
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpdateCall patches call metadata on the vendor side.
func (c *Client) UpdateCall(ctx context.Context, callID string, req UpdateCallRequest) (Call, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Call{}, fmt.Errorf("vapi: encode update: %w", err)
	}
	var out Call
	if err := c.do(ctx, http.MethodPatch, callID, body, &out); err != nil {
		return Call{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, callID string, body []byte, out any) error {
	if strings.TrimSpace(callID) == "" {
		return errors.New("vapi: call id is required")
	}
	endpoint := c.baseURL + "/call/" + url.PathEscape(callID)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("vapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vapi: %s call: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("vapi request", "method", method, "call_id", callID, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookBody))
	if err != nil {
		return fmt.Errorf("vapi: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrCallNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("vapi: decode response: %w", err)
	}
	return nil
}
