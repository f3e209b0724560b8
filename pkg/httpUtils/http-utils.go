package http_utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// StatusError reports a response outside the accepted status range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status code: %d", e.URL, e.StatusCode)
}

// Fetch performs a GET against url and returns the response status code.
// The body is drained and closed so the connection can be reused.
func Fetch(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

// GetOK performs a GET against url and fails unless the final response,
// after redirects, is 2xx.
func GetOK(ctx context.Context, client *http.Client, url string) error {
	status, err := Fetch(ctx, client, url)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{URL: url, StatusCode: status}
	}
	return nil
}
