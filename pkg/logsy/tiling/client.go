// Package tiling provides an HTTP client for the external geotiff tiling
// service. The service receives a stored raster path and produces a tile
// pyramid next to it, answering with the pyramid location and raster
// metadata.
package tiling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// Client calls a tiling service over HTTP. It implements logsy.Tiler.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// ClientOption is a functional option for configuring a Client
type ClientOption func(*Client)

// NewClient creates a tiling client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // tiling large rasters is slow
		},
		retryAttempts: 3,
		retryDelay:    1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetry configures retry behavior. The request is always issued at least
// once, whatever attempts says.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

type tileRequest struct {
	Path string `json:"path"`
}

type tileResponse struct {
	Path  string `json:"path"`
	Meta  string `json:"meta"`
	Error string `json:"error,omitempty"`
}

// CreateTiles asks the tiling service to build a tile pyramid for the raster
// stored at path. Transport failures and 5xx responses are retried; a
// response that names an error is final.
func (c *Client) CreateTiles(ctx context.Context, path string) (*logsy.TileResult, error) {
	body, err := json.Marshal(tileRequest{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/tiles", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("tiling request failed: %w", err)
			continue
		}

		result, retryable, err := c.decode(resp)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("tiling failed after %d attempts: %w", c.retryAttempts, lastErr)
}

func (c *Client) decode(resp *http.Response) (*logsy.TileResult, bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		retryable := resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("tiling failed with status: %s", resp.Status)
	}

	var out tileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}

	if out.Error != "" {
		return nil, false, fmt.Errorf("tiling rejected: %s", out.Error)
	}
	if out.Path == "" {
		return nil, false, fmt.Errorf("tiling response missing path")
	}

	meta := make(map[string]any)
	if out.Meta != "" {
		if err := json.Unmarshal([]byte(out.Meta), &meta); err != nil {
			return nil, false, fmt.Errorf("failed to parse tiling meta: %w", err)
		}
	}

	return &logsy.TileResult{Path: out.Path, Meta: meta}, false, nil
}
