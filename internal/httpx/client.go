// Package httpx is a small HTTP client used by the runner's warm-fetch
// recovery walk (SPEC_FULL.md §4.10), grounded on the teacher's
// pkg/shared/httputil/client.go GetJSON/PostJSON helpers: a plain
// net/http.Client with a timeout, header injection, and a non-2xx
// status folded into an error rather than a typed response.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps http.Client with the header-injection and status-check
// conventions the runner's recovery walk needs.
type Client struct {
	http *http.Client
}

// New builds a Client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// GetJSON issues a GET request with headers and returns the raw
// response body. A non-2xx status is reported as an error carrying the
// status code and body, matching the teacher's GetJSON.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	return data, resp.StatusCode, nil
}
