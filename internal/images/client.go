package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Browser-like identities matching what image hosts expect; the
// Referer works around common hotlink protection.
const (
	downloadUserAgent = "Mozilla/5.0"
	proxyUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	refererHeader     = "https://www.google.com"
)

// Client fetches individual images over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchImage downloads one image and returns its raw bytes. Non-200
// responses are errors.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)
	req.Header.Set("Referer", refererHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad response status: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// Open issues the proxy GET for an image and returns the raw response.
// The caller owns the response body and must close it; non-200
// statuses are returned as-is so they can be passed through.
func (c *Client) Open(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", proxyUserAgent)
	req.Header.Set("Accept", "image/*,*/*")
	req.Header.Set("Referer", refererHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
