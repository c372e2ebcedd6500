// Package gameapi implements the progress sync API client. It talks to the
// account server for fetching server-side progress and merging local
// progress, with retries and a circuit breaker around every call.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/owlet-learn/owlet-core/pkg/circuitbreaker"
	"github.com/owlet-learn/owlet-core/pkg/logger"
	"github.com/owlet-learn/owlet-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the sync API client.
type ClientConfig struct {
	// BaseURL is the account server base URL
	BaseURL string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// MaxAttempts bounds retries per logical call
	MaxAttempts int

	// Logger for structured logging
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:     baseURL,
		Timeout:     15 * time.Second,
		MaxAttempts: 3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the account server API client. All methods are safe for
// concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *logger.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker

	tokenMu sync.RWMutex
	token   string
}

// NewClient creates a new sync API client.
func NewClient(config ClientConfig) *Client {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}

	log = log.With(logger.Component("gameapi_client"))

	// Without a bearer token the server may fall back to cookie-based
	// credentials, so the client keeps a jar and echoes whatever the
	// server sets.
	jar, _ := cookiejar.New(nil)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Jar:     jar,
		},
		logger: log,
		retrier: retry.New(
			retry.WithMaxAttempts(config.MaxAttempts),
			retry.WithInitialDelay(200*time.Millisecond),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Debug("retrying request",
					logger.Int("attempt", attempt),
					logger.Duration("delay", delay),
					logger.Err(err))
			}),
		),
		breaker: circuitbreaker.New("gameapi"),
	}
}

// SetToken installs the session token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

// ClearToken drops the session token. Subsequent calls go out unauthenticated.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// HasToken reports whether a session token is installed.
func (c *Client) HasToken() bool {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// MyProgress fetches the authenticated account's server-side progress.
func (c *Client) MyProgress(ctx context.Context) (*ProgressDTO, error) {
	var result ProgressDTO
	if err := c.doRequest(ctx, http.MethodGet, "/game/my-progress", nil, &result); err != nil {
		return nil, fmt.Errorf("my progress: %w", err)
	}
	return &result, nil
}

// MergeProgress pushes local progress to the server and returns the
// authoritative post-merge totals.
func (c *Client) MergeProgress(ctx context.Context, req MergeRequest) (*MergeResponse, error) {
	var result MergeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/game/merge-progress", req, &result); err != nil {
		return nil, fmt.Errorf("merge progress: %w", err)
	}
	return &result, nil
}

// RequestToken exchanges an account ID for a session token. Development
// servers expose this directly; production fronts it with a real identity
// provider.
func (c *Client) RequestToken(ctx context.Context, accountID string) (string, error) {
	var result TokenResponse
	req := TokenRequest{AccountID: accountID}
	if err := c.doRequest(ctx, http.MethodPost, "/auth/token", req, &result); err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	return result.Token, nil
}

// IsHealthy checks whether the server is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	err := c.doSingleRequest(ctx, http.MethodGet, "/healthz", nil, nil)
	return err == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with retries inside the circuit breaker.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doSingleRequest(ctx, method, path, body, result)
		})
	})
}

// doSingleRequest performs a single HTTP request. Server and transport
// failures come back wrapped retryable; client errors are permanent.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body any, result any) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.tokenMu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.tokenMu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return retry.Retryable(fmt.Errorf("server error: status %d", resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIErrorDTO{}
		if unmarshalErr := json.Unmarshal(respBody, apiErr); unmarshalErr != nil || apiErr.Message == "" {
			apiErr = &APIErrorDTO{Message: fmt.Sprintf("status %d", resp.StatusCode)}
		}
		return retry.Permanent(apiErr)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
	}

	return nil
}
