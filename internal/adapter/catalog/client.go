package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/quizdeck/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	// PageSize is the most items the backend returns per request
	PageSize       = 200
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Client implements domain.CatalogClient over the catalog HTTP API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
}

var _ domain.CatalogClient = (*Client)(nil)

// NewClient creates a new catalog API client. token may be empty.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:     logger,
		retryDelay: baseRetryDelay,
	}
}

// doRequest performs an HTTP request against the catalog API.
// Includes retry logic with exponential backoff for 5xx server errors
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		c.logger.Debug("catalog request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("catalog request failed", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrRemoteUnavailable, err)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, domain.ErrAuthFailed
		}

		// Retry on 5xx server errors
		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = fmt.Errorf("%w: server error: %d - %s", domain.ErrRemoteUnavailable, resp.StatusCode, string(body))
			c.logger.Warn("catalog server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Error("catalog request error", "status", resp.StatusCode, "body", string(body))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	c.logger.Error("catalog request failed after retries", "error", lastErr, "path", path)
	return nil, lastErr
}

// FetchVersion returns the current remote data version
func (c *Client) FetchVersion(ctx context.Context) (int, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/version", nil)
	if err != nil {
		return 0, err
	}

	var resp VersionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Version, nil
}

// FetchMaxIndex returns the highest global index in the catalog
func (c *Client) FetchMaxIndex(ctx context.Context) (int, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/max-index", nil)
	if err != nil {
		return 0, err
	}

	var resp MaxIndexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.MaxIndex, nil
}

// FetchByIndices returns the complete items among indices (at most PageSize)
func (c *Client) FetchByIndices(ctx context.Context, indices []int) ([]domain.Item, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	if len(indices) > PageSize {
		return nil, fmt.Errorf("too many indices in one request: %d > %d", len(indices), PageSize)
	}

	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}

	query := url.Values{}
	query.Set("indices", strings.Join(parts, ","))
	query.Set("limit", strconv.Itoa(PageSize))

	body, err := c.doRequest(ctx, http.MethodGet, "/items", query)
	if err != nil {
		return nil, err
	}

	var resp ItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	items := MapItems(resp.Items)
	c.logger.Debug("fetched items", "requested", len(indices), "received", len(resp.Items), "kept", len(items))
	return items, nil
}
