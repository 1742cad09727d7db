// Package report publishes write-test results to a collector service.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/qudata/memcheck/internal/domain"
)

// Client sends run reports to the collector.
type Client struct {
	baseURL string
	token   string

	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a collector client for baseURL. token may be empty.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil // suppress default logging

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    retryClient.StandardClient(),
		logger:  logger,
	}
}

// Ping verifies connectivity to the collector.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/ping", nil)
	return err
}

// Publish sends one run report.
func (c *Client) Publish(ctx context.Context, report domain.RunReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/runs", body); err != nil {
		return fmt.Errorf("publish run %s: %w", report.RunID, err)
	}
	return nil
}

// --- internal ---

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("collector error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, fmt.Errorf("collector %s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
