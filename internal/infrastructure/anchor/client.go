// Package anchor is a client for the Anchor Browser sessions API.
package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/cenkalti/backoff/v4"
)

var (
	ErrMissingAPIKey   = errors.New("anchor: api key is required")
	ErrInvalidResponse = errors.New("anchor: invalid session response")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anchor API error: status=%d body=%s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	headless   bool
	maxRetries int
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(cfg config.AnchorConfig, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		headless:   cfg.Headless,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}, nil
}

type sessionRequest struct {
	Browser struct {
		Headless struct {
			Active bool `json:"active"`
		} `json:"headless"`
	} `json:"browser"`
}

// StartSession acquires a new remote browser. Transient failures (network
// errors and 5xx) are retried with exponential backoff.
func (c *Client) StartSession(ctx context.Context, browserIndex int) (*domain.RemoteBrowser, error) {
	var payload sessionRequest
	payload.Browser.Headless.Active = c.headless
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session payload: %w", err)
	}

	var body []byte
	op := func() error {
		var err error
		body, err = c.do(ctx, http.MethodPost, "/v1/sessions", jsonPayload)
		return retryable(err)
	}
	if err := backoff.Retry(op, c.policy(ctx)); err != nil {
		return nil, fmt.Errorf("anchor: start session: %w", err)
	}

	var result struct {
		Data struct {
			ID          string `json:"id"`
			CDPURL      string `json:"cdp_url"`
			LiveViewURL string `json:"live_view_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if result.Data.ID == "" || result.Data.CDPURL == "" {
		return nil, fmt.Errorf("%w: missing id or cdp_url", ErrInvalidResponse)
	}

	c.logger.Infow("anchor session started", "browser_index", browserIndex, "browser_session_id", result.Data.ID)
	return &domain.RemoteBrowser{
		ID:          result.Data.ID,
		CDPURL:      result.Data.CDPURL,
		LiveViewURL: result.Data.LiveViewURL,
	}, nil
}

func (c *Client) EndSession(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/v1/sessions/"+id, nil); err != nil {
		return fmt.Errorf("anchor: end session %s: %w", id, err)
	}
	c.logger.Infow("anchor session ended", "browser_session_id", id)
	return nil
}

func (c *Client) EndAllSessions(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodDelete, "/v1/sessions/all", nil); err != nil {
		return fmt.Errorf("anchor: end all sessions: %w", err)
	}
	c.logger.Infow("all anchor sessions ended")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("anchor-api-key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	var policy backoff.BackOff = b
	if c.maxRetries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}
	return backoff.WithContext(policy, ctx)
}

// 4xx answers will not change on retry.
func retryable(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		return backoff.Permanent(err)
	}
	return err
}
