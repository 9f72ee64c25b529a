package reservations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPSpotChecker reads spots from the spot inventory service's REST API.
type HTTPSpotChecker struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSpotChecker returns a checker for the service at baseURL. The client
// carries no timeout of its own; the caller's context bounds the call.
func NewHTTPSpotChecker(baseURL string, client *http.Client) *HTTPSpotChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSpotChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPSpotChecker) GetSpot(ctx context.Context, spotID string) (*SpotStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/spots/"+url.PathEscape(spotID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrSpotNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spot service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var spot SpotStatus
	if err := json.NewDecoder(resp.Body).Decode(&spot); err != nil {
		return nil, fmt.Errorf("failed to decode spot response: %w", err)
	}
	return &spot, nil
}
