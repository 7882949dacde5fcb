package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type HTTPConnector struct {
	Client    *http.Client
	UserAgent string
}

func NewHTTPConnector(timeout time.Duration, userAgent string) *HTTPConnector {
	return &HTTPConnector{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL         string
	StatusCode  int
	Description string
}

func (e *StatusError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("GET %s: status code: %d, body: %s", e.URL, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("GET %s: status code: %d", e.URL, e.StatusCode)
}

func (c *HTTPConnector) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			var body map[string]any
			if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
				if d, ok := body["error_description"].(string); ok {
					statusErr.Description = d
				} else if d, ok := body["error"].(string); ok {
					statusErr.Description = d
				}
			}
		}
		return nil, statusErr
	}

	buf := bytes.NewBuffer(make([]byte, 0, preallocSize(resp.ContentLength)))
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// maxPrealloc bounds how much of an announced Content-Length is allocated
// up front; larger bodies grow as they are read.
const maxPrealloc = 64 << 20

func preallocSize(contentLength int64) int {
	if contentLength <= 0 {
		return 0
	}
	return int(min(contentLength, maxPrealloc))
}

func (c *HTTPConnector) Scheme() string {
	return HTTPScheme
}

func (c *HTTPConnector) Close() error {
	if c.Client != nil {
		c.Client.CloseIdleConnections()
	}
	return nil
}
