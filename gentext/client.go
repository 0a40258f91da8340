// Package gentext is the client for the text-generation collaborator that
// writes product sales descriptions.
package gentext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client encapsulates the HTTP interaction with the generation service.
// Callers fall back to their own hint text on any error.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the generation service at baseURL. An
// empty baseURL yields a client that always fails, which callers already
// tolerate.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type describeRequest struct {
	Product string `json:"product"`
	Hint    string `json:"hint"`
}

type describeResponse struct {
	Text string `json:"text"`
}

// Describe asks the service for a sales description of the product based
// on a short hint.
func (c *Client) Describe(ctx context.Context, productName, shortHint string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("gentext client not configured")
	}

	body, err := json.Marshal(describeRequest{Product: productName, Hint: shortHint})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/describe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result describeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Text == "" {
		return "", fmt.Errorf("empty description")
	}
	return result.Text, nil
}
